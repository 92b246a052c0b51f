package commands

import (
	"context"
	"strings"
	"time"

	application "aegis/contexts/model-governance/governance-service/application"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
)

// TallyCommand closes voting on one proposal.
type TallyCommand struct {
	ProposalID string
}

// TallyResult reports the decided proposal. Changed is false when the
// proposal had already left Open and the call was a no-op.
type TallyResult struct {
	Proposal entities.Proposal
	Changed  bool
}

// Tally evaluates the deterministic tally rule once the deadline has
// passed. There is no background timer; callers invoke this lazily.
// Before the deadline it fails ErrTallyNotReady. Re-tallying a decided
// proposal returns the recorded outcome unchanged.
func (uc GovernanceUseCase) Tally(ctx context.Context, cmd TallyCommand) (TallyResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ProposalID) == "" {
		return TallyResult{}, domainerrors.ErrInvalidProposalInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
	if err != nil {
		return TallyResult{}, err
	}
	if proposal.Status != entities.ProposalStatusOpen {
		return TallyResult{Proposal: proposal}, nil
	}

	now := uc.now()
	if !proposal.VotingClosed(now) {
		return TallyResult{}, domainerrors.ErrTallyNotReady
	}

	proposal.Status = proposal.TallyOutcome()
	talliedAt := now
	proposal.TalliedAt = &talliedAt
	proposal.UpdatedAt = now
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		return TallyResult{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.tallied", proposal, now, map[string]any{
		"tallied_at": talliedAt.Format(time.RFC3339),
	}); err != nil {
		return TallyResult{}, err
	}

	logger.Info("proposal tallied",
		"event", "governance_proposal_tallied",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"status", string(proposal.Status),
		"votes_for", proposal.VotesFor,
		"votes_against", proposal.VotesAgainst,
		"quorum_threshold", proposal.QuorumThreshold,
	)
	return TallyResult{Proposal: proposal, Changed: true}, nil
}
