package commands

import (
	"context"
	"strings"
	"time"

	application "aegis/contexts/model-governance/governance-service/application"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/ports"
)

// ExecuteCommand applies a passed proposal to the registry under optimistic
// concurrency on the registry version.
type ExecuteCommand struct {
	ProposalID              string
	ExpectedRegistryVersion uint64
}

// ExecuteResult carries the registry state after the call. AlreadyExecuted
// marks the idempotent retry path where no version increment happened.
type ExecuteResult struct {
	Registry        entities.ModelRecord
	Proposal        entities.Proposal
	AlreadyExecuted bool
}

// Execute repoints the registry to the proposal's artifact. Valid only from
// Passed; when the proposal requires verification, an accepted attestation
// with a positive result must already be stored. The registry write and the
// proposal transition commit atomically; a stale expected version fails
// ErrRegistryVersionMismatch with zero side effects. Re-executing an
// executed proposal succeeds without touching the registry.
func (uc GovernanceUseCase) Execute(ctx context.Context, cmd ExecuteCommand) (ExecuteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("proposal execute processing started",
		"event", "governance_execute_started",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", strings.TrimSpace(cmd.ProposalID),
		"expected_registry_version", cmd.ExpectedRegistryVersion,
	)
	if strings.TrimSpace(cmd.ProposalID) == "" {
		return ExecuteResult{}, domainerrors.ErrInvalidProposalInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
	if err != nil {
		return ExecuteResult{}, err
	}
	if proposal.Status == entities.ProposalStatusExecuted {
		registry, err := uc.Registry.GetRegistry(ctx)
		if err != nil {
			return ExecuteResult{}, err
		}
		logger.Info("proposal execute replayed on executed proposal",
			"event", "governance_execute_noop",
			"module", "model-governance/governance-service",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
			"registry_version", registry.Version,
		)
		return ExecuteResult{Registry: registry, Proposal: proposal, AlreadyExecuted: true}, nil
	}
	if proposal.Status != entities.ProposalStatusPassed {
		return ExecuteResult{}, domainerrors.ErrProposalNotPassed
	}

	if proposal.RequiresVerification {
		attestation, found, err := uc.Attestations.GetAttestation(ctx, proposal.ProposalID)
		if err != nil {
			return ExecuteResult{}, err
		}
		if !found || !attestation.Verified {
			logger.Warn("proposal execute blocked by verification gate",
				"event", "governance_execute_verification_blocked",
				"module", "model-governance/governance-service",
				"layer", "application",
				"proposal_id", proposal.ProposalID,
				"attestation_found", found,
			)
			return ExecuteResult{}, domainerrors.ErrVerificationRequired
		}
	}

	now := uc.now()
	registry, err := uc.Registry.ApplyExecution(ctx, ports.ExecutionUpdate{
		ProposalID:      proposal.ProposalID,
		ExpectedVersion: cmd.ExpectedRegistryVersion,
		ArtifactRef:     proposal.ProposedArtifactRef,
		ProofRef:        proposal.ProposedProofRef,
		CompressionTag:  proposal.ProposedCompression,
		ExecutedAt:      now,
	})
	if err != nil {
		return ExecuteResult{}, err
	}
	proposal.Status = entities.ProposalStatusExecuted
	executedAt := now
	proposal.ExecutedAt = &executedAt
	proposal.UpdatedAt = now

	if err := uc.appendProposalEvent(ctx, "proposal.executed", proposal, now, map[string]any{
		"registry_version": registry.Version,
	}); err != nil {
		return ExecuteResult{}, err
	}
	if err := uc.appendRegistryEvent(ctx, registry, proposal.ProposalID, now); err != nil {
		return ExecuteResult{}, err
	}

	logger.Info("proposal executed",
		"event", "governance_proposal_executed",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"registry_version", registry.Version,
		"artifact_ref", registry.ArtifactRef,
	)

	proposal = uc.dispatchTrainingJob(ctx, proposal, now)
	return ExecuteResult{Registry: registry, Proposal: proposal}, nil
}

// dispatchTrainingJob is fire-and-forget from the state machine's
// perspective: failures are logged, never surfaced to the execute caller,
// and the retry worker re-dispatches executed training proposals that
// still lack a job id.
func (uc GovernanceUseCase) dispatchTrainingJob(ctx context.Context, proposal entities.Proposal, now time.Time) entities.Proposal {
	logger := application.ResolveLogger(uc.Logger)
	if !proposal.IsTrainingAction() || uc.Marketplace == nil {
		return proposal
	}

	jobID, err := uc.Marketplace.RequestTrainingJob(ctx, ports.TrainingJobRequest{
		ProposalID:     proposal.ProposalID,
		ArtifactRef:    proposal.ProposedArtifactRef,
		TrainingParams: proposal.Description,
		ProofRequired:  proposal.RequiresVerification,
	})
	if err != nil {
		logger.Warn("training job dispatch failed; retry worker will reattempt",
			"event", "governance_training_dispatch_failed",
			"module", "model-governance/governance-service",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
			"error", err.Error(),
		)
		return proposal
	}

	proposal.TrainingJobID = strings.TrimSpace(jobID)
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		logger.Warn("training job id record failed",
			"event", "governance_training_job_record_failed",
			"module", "model-governance/governance-service",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
			"job_id", proposal.TrainingJobID,
			"error", err.Error(),
		)
		return proposal
	}
	if uc.Outbox != nil {
		_ = uc.appendProposalEvent(ctx, "training_job.requested", proposal, now, map[string]any{
			"job_id": proposal.TrainingJobID,
		})
	}
	logger.Info("training job requested",
		"event", "governance_training_job_requested",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"job_id", proposal.TrainingJobID,
	)
	return proposal
}

func (uc GovernanceUseCase) appendRegistryEvent(
	ctx context.Context,
	registry entities.ModelRecord,
	proposalID string,
	occurredAt time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newGovernanceEnvelope(eventID, "registry.updated", "model-registry", occurredAt, map[string]any{
		"proposal_id":     proposalID,
		"artifact_ref":    registry.ArtifactRef,
		"proof_ref":       registry.ProofRef,
		"compression_tag": registry.CompressionTag,
		"version":         registry.Version,
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
