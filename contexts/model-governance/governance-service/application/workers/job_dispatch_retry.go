package workers

import (
	"context"
	"log/slog"
	"time"

	application "aegis/contexts/model-governance/governance-service/application"
	"aegis/contexts/model-governance/governance-service/ports"
)

// JobDispatchRetry re-dispatches training-job requests for executed
// training proposals that still lack a recorded job id (dispatch at execute
// time is fire-and-forget and may have failed).
type JobDispatchRetry struct {
	Proposals   ports.ProposalRepository
	Marketplace ports.ComputeMarketplace
	Clock       ports.Clock
	BatchSize   int
	Logger      *slog.Logger
}

// RunOnce dispatches a bounded batch. A failed dispatch is logged and left
// pending for the next cycle; a failed record keeps the job id out of the
// audit trail, so it is returned as an error.
func (w JobDispatchRetry) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	limit := w.BatchSize
	if limit <= 0 {
		limit = 50
	}

	pending, err := w.Proposals.ListUndispatchedTrainingProposals(ctx, limit)
	if err != nil {
		logger.Error("training dispatch list failed",
			"event", "governance_training_retry_list_failed",
			"module", "model-governance/governance-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if w.Clock != nil {
		now = w.Clock.Now().UTC()
	}

	for _, proposal := range pending {
		jobID, err := w.Marketplace.RequestTrainingJob(ctx, ports.TrainingJobRequest{
			ProposalID:     proposal.ProposalID,
			ArtifactRef:    proposal.ProposedArtifactRef,
			TrainingParams: proposal.Description,
			ProofRequired:  proposal.RequiresVerification,
		})
		if err != nil {
			logger.Warn("training dispatch retry failed",
				"event", "governance_training_retry_failed",
				"module", "model-governance/governance-service",
				"layer", "worker",
				"proposal_id", proposal.ProposalID,
				"error", err.Error(),
			)
			continue
		}
		proposal.TrainingJobID = jobID
		proposal.UpdatedAt = now
		if err := w.Proposals.SaveProposal(ctx, proposal); err != nil {
			logger.Error("training dispatch retry record failed",
				"event", "governance_training_retry_record_failed",
				"module", "model-governance/governance-service",
				"layer", "worker",
				"proposal_id", proposal.ProposalID,
				"job_id", jobID,
				"error", err.Error(),
			)
			return err
		}
		logger.Info("training job dispatched on retry",
			"event", "governance_training_retry_dispatched",
			"module", "model-governance/governance-service",
			"layer", "worker",
			"proposal_id", proposal.ProposalID,
			"job_id", jobID,
		)
	}
	return nil
}
