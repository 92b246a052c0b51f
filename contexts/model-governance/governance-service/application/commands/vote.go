package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	application "aegis/contexts/model-governance/governance-service/application"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/ports"
)

// CastVoteCommand is the write-model input for casting one ballot.
type CastVoteCommand struct {
	ProposalID     string
	VoterID        string
	IdempotencyKey string
	Direction      entities.VoteDirection
}

// CastVoteResult returns the stored vote, the updated proposal tally and a
// replay marker.
type CastVoteResult struct {
	Vote     entities.Vote
	Proposal entities.Proposal
	Replayed bool
}

// CastVote records a weighted ballot. Weight is fixed at cast time from the
// voter's holdings as of proposal creation (snapshot policy, manipulation
// resistance). Duplicate (proposal, voter) casts are rejected, not merged.
func (uc GovernanceUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("vote cast processing started",
		"event", "governance_vote_cast_started",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", strings.TrimSpace(cmd.ProposalID),
		"voter_id", strings.TrimSpace(cmd.VoterID),
	)
	if strings.TrimSpace(cmd.ProposalID) == "" ||
		strings.TrimSpace(cmd.VoterID) == "" ||
		(cmd.Direction != entities.VoteDirectionFor && cmd.Direction != entities.VoteDirectionAgainst) {
		logger.Warn("vote cast validation failed",
			"event", "governance_vote_cast_validation_failed",
			"module", "model-governance/governance-service",
			"layer", "application",
			"proposal_id", strings.TrimSpace(cmd.ProposalID),
			"voter_id", strings.TrimSpace(cmd.VoterID),
		)
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return CastVoteResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashCastVoteCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return CastVoteResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return CastVoteResult{}, domainerrors.ErrIdempotencyConflict
		}
		vote, voteFound, err := uc.Votes.GetVote(ctx, strings.TrimSpace(cmd.ProposalID), strings.TrimSpace(cmd.VoterID))
		if err != nil {
			return CastVoteResult{}, err
		}
		if !voteFound {
			return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
		}
		proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
		if err != nil {
			return CastVoteResult{}, err
		}
		logger.Info("vote cast replayed",
			"event", "governance_vote_cast_replayed",
			"module", "model-governance/governance-service",
			"layer", "application",
			"proposal_id", vote.ProposalID,
			"voter_id", vote.VoterID,
		)
		return CastVoteResult{Vote: vote, Proposal: proposal, Replayed: true}, nil
	}

	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
	if err != nil {
		return CastVoteResult{}, err
	}
	if proposal.Status != entities.ProposalStatusOpen {
		return CastVoteResult{}, domainerrors.ErrProposalNotOpen
	}
	if proposal.VotingClosed(now) {
		return CastVoteResult{}, domainerrors.ErrVotingClosed
	}

	weight := uc.resolveWeight(ctx, cmd.VoterID, proposal)
	if weight <= 0 {
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	vote := entities.Vote{
		ProposalID: proposal.ProposalID,
		VoterID:    strings.TrimSpace(cmd.VoterID),
		Direction:  cmd.Direction,
		Weight:     weight,
		CastAt:     now,
	}
	updated, err := uc.Votes.CastVote(ctx, vote)
	if err != nil {
		return CastVoteResult{}, err
	}
	if err := uc.appendProposalEvent(ctx, "vote.cast", updated, now, map[string]any{
		"voter_id":  vote.VoterID,
		"direction": string(vote.Direction),
		"weight":    vote.Weight,
	}); err != nil {
		return CastVoteResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         strings.TrimSpace(cmd.IdempotencyKey),
		RequestHash: requestHash,
		EntityID:    proposal.ProposalID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("vote cast",
		"event", "governance_vote_cast",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", vote.ProposalID,
		"voter_id", vote.VoterID,
		"direction", string(vote.Direction),
		"weight", vote.Weight,
		"votes_for", updated.VotesFor,
		"votes_against", updated.VotesAgainst,
	)
	return CastVoteResult{Vote: vote, Proposal: updated}, nil
}

// resolveWeight reads the voter's holding snapshot as of proposal creation.
// Voters without a snapshot fall back to weight 1.
func (uc GovernanceUseCase) resolveWeight(ctx context.Context, voterID string, proposal entities.Proposal) int64 {
	logger := application.ResolveLogger(uc.Logger)
	if uc.Weights == nil {
		return 1
	}
	weight, found, err := uc.Weights.WeightAt(ctx, strings.TrimSpace(voterID), proposal.CreatedAt)
	if err != nil {
		logger.Warn("voter weight lookup failed; applying fallback weight",
			"event", "governance_weight_lookup_failed",
			"module", "model-governance/governance-service",
			"layer", "application",
			"voter_id", strings.TrimSpace(voterID),
			"proposal_id", proposal.ProposalID,
			"error", err.Error(),
		)
		return 1
	}
	if !found {
		logger.Info("voter weight snapshot missing; applying fallback weight",
			"event", "governance_weight_missing",
			"module", "model-governance/governance-service",
			"layer", "application",
			"voter_id", strings.TrimSpace(voterID),
			"proposal_id", proposal.ProposalID,
		)
		return 1
	}
	return weight
}

func hashCastVoteCommand(cmd CastVoteCommand) string {
	payload := map[string]string{
		"proposal_id": strings.TrimSpace(cmd.ProposalID),
		"voter_id":    strings.TrimSpace(cmd.VoterID),
		"direction":   string(cmd.Direction),
		"op":          "cast_vote",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
