package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	application "aegis/contexts/model-governance/governance-service/application"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/domain/services"
	"aegis/contexts/model-governance/governance-service/ports"
)

// GovernanceUseCase orchestrates the proposal lifecycle: create, vote,
// tally, attest, execute. Every mutation is synchronous request/response;
// pending states (deadline not reached, attestation absent) surface as
// typed errors, never as blocking waits.
type GovernanceUseCase struct {
	Proposals      ports.ProposalRepository
	Votes          ports.VoteRepository
	Attestations   ports.AttestationRepository
	Registry       ports.RegistryRepository
	Weights        ports.WeightSource
	Marketplace    ports.ComputeMarketplace
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	AttestorID     string
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CreateProposalCommand is the write-model input for proposal creation.
type CreateProposalCommand struct {
	CreatorID            string
	IdempotencyKey       string
	Description          string
	TargetParam          string
	ArtifactRef          string
	ProofRef             string
	CompressionTag       string
	QuorumThreshold      int64
	Deadline             time.Time
	RequiresVerification bool
}

// CreateProposalResult returns the stored proposal and a replay marker.
type CreateProposalResult struct {
	Proposal entities.Proposal
	Replayed bool
}

// CancelProposalCommand requests creator-initiated cancellation.
type CancelProposalCommand struct {
	ProposalID string
	CallerID   string
}

// CreateProposal validates and stores a new open proposal. The method is
// replay-safe via idempotency key + request hash validation.
func (uc GovernanceUseCase) CreateProposal(ctx context.Context, cmd CreateProposalCommand) (CreateProposalResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("proposal create processing started",
		"event", "governance_proposal_create_started",
		"module", "model-governance/governance-service",
		"layer", "application",
		"creator_id", strings.TrimSpace(cmd.CreatorID),
		"artifact_ref", strings.TrimSpace(cmd.ArtifactRef),
	)

	now := uc.now()
	if err := validateCreateProposal(cmd, now); err != nil {
		logger.Warn("proposal create validation failed",
			"event", "governance_proposal_create_validation_failed",
			"module", "model-governance/governance-service",
			"layer", "application",
			"creator_id", strings.TrimSpace(cmd.CreatorID),
			"error", err.Error(),
		)
		return CreateProposalResult{}, err
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return CreateProposalResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	requestHash := hashCreateProposalCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return CreateProposalResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return CreateProposalResult{}, domainerrors.ErrIdempotencyConflict
		}
		proposal, err := uc.Proposals.GetProposal(ctx, record.EntityID)
		if err != nil {
			return CreateProposalResult{}, err
		}
		logger.Info("proposal create replayed",
			"event", "governance_proposal_create_replayed",
			"module", "model-governance/governance-service",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
		)
		return CreateProposalResult{Proposal: proposal, Replayed: true}, nil
	}

	proposalID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateProposalResult{}, err
	}
	proposal := entities.Proposal{
		ProposalID:           proposalID,
		CreatorID:            strings.TrimSpace(cmd.CreatorID),
		Description:          strings.TrimSpace(cmd.Description),
		TargetParam:          strings.TrimSpace(cmd.TargetParam),
		ProposedArtifactRef:  strings.TrimSpace(cmd.ArtifactRef),
		ProposedProofRef:     strings.TrimSpace(cmd.ProofRef),
		ProposedCompression:  strings.TrimSpace(cmd.CompressionTag),
		QuorumThreshold:      cmd.QuorumThreshold,
		Deadline:             cmd.Deadline.UTC(),
		RequiresVerification: cmd.RequiresVerification,
		Status:               entities.ProposalStatusOpen,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		return CreateProposalResult{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.created", proposal, now, nil); err != nil {
		return CreateProposalResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         strings.TrimSpace(cmd.IdempotencyKey),
		RequestHash: requestHash,
		EntityID:    proposal.ProposalID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return CreateProposalResult{}, err
	}

	logger.Info("proposal created",
		"event", "governance_proposal_created",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"creator_id", proposal.CreatorID,
		"quorum_threshold", proposal.QuorumThreshold,
		"deadline", proposal.Deadline.Format(time.RFC3339),
		"requires_verification", proposal.RequiresVerification,
	)
	return CreateProposalResult{Proposal: proposal}, nil
}

// CancelProposal is allowed only for the creator, only while the proposal
// is open, and only before any vote exists.
func (uc GovernanceUseCase) CancelProposal(ctx context.Context, cmd CancelProposalCommand) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ProposalID) == "" || strings.TrimSpace(cmd.CallerID) == "" {
		return entities.Proposal{}, domainerrors.ErrInvalidProposalInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if !strings.EqualFold(proposal.CreatorID, strings.TrimSpace(cmd.CallerID)) {
		return entities.Proposal{}, domainerrors.ErrNotCreator
	}
	if proposal.Status != entities.ProposalStatusOpen {
		return entities.Proposal{}, domainerrors.ErrProposalNotOpen
	}
	if proposal.HasVotes() {
		return entities.Proposal{}, domainerrors.ErrProposalHasVotes
	}

	now := uc.now()
	proposal.Status = entities.ProposalStatusCancelled
	proposal.UpdatedAt = now
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		return entities.Proposal{}, err
	}
	if err := uc.appendProposalEvent(ctx, "proposal.cancelled", proposal, now, nil); err != nil {
		return entities.Proposal{}, err
	}
	logger.Info("proposal cancelled",
		"event", "governance_proposal_cancelled",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"creator_id", proposal.CreatorID,
	)
	return proposal, nil
}

func validateCreateProposal(cmd CreateProposalCommand, now time.Time) error {
	if strings.TrimSpace(cmd.CreatorID) == "" {
		return domainerrors.ErrInvalidProposalInput
	}
	if err := services.ValidateArtifactRef(cmd.ArtifactRef); err != nil {
		return err
	}
	if cmd.QuorumThreshold <= 0 {
		return domainerrors.ErrInvalidProposalInput
	}
	if !cmd.Deadline.UTC().After(now) {
		return domainerrors.ErrInvalidProposalInput
	}
	if cmd.RequiresVerification || strings.TrimSpace(cmd.ProofRef) != "" {
		if _, _, err := services.ParseProofRef(cmd.ProofRef); err != nil {
			return err
		}
	}
	return nil
}

func (uc GovernanceUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc GovernanceUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func (uc GovernanceUseCase) appendProposalEvent(
	ctx context.Context,
	eventType string,
	proposal entities.Proposal,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"proposal_id":           proposal.ProposalID,
		"creator_id":            proposal.CreatorID,
		"status":                string(proposal.Status),
		"proposed_artifact_ref": proposal.ProposedArtifactRef,
		"proposed_proof_ref":    proposal.ProposedProofRef,
		"votes_for":             proposal.VotesFor,
		"votes_against":         proposal.VotesAgainst,
		"occurred_at":           occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	envelope, err := newGovernanceEnvelope(eventID, eventType, proposal.ProposalID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func hashCreateProposalCommand(cmd CreateProposalCommand) string {
	payload := map[string]string{
		"creator_id":            strings.TrimSpace(cmd.CreatorID),
		"description":           strings.TrimSpace(cmd.Description),
		"target_param":          strings.TrimSpace(cmd.TargetParam),
		"artifact_ref":          strings.TrimSpace(cmd.ArtifactRef),
		"proof_ref":             strings.TrimSpace(cmd.ProofRef),
		"compression_tag":       strings.TrimSpace(cmd.CompressionTag),
		"quorum_threshold":      strconv.FormatInt(cmd.QuorumThreshold, 10),
		"deadline":              cmd.Deadline.UTC().Format(time.RFC3339Nano),
		"requires_verification": strconv.FormatBool(cmd.RequiresVerification),
		"op":                    "create_proposal",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
