package commands

import (
	"context"
	"strings"
	"time"

	application "aegis/contexts/model-governance/governance-service/application"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/domain/services"
)

// SubmitAttestationCommand records an external proof verification result.
type SubmitAttestationCommand struct {
	ProposalID string
	AttestorID string
	Verified   bool
	ProofRef   string
}

// SubmitAttestation bridges out-of-process proof computation into stored
// state. Only the configured attestor authority may submit; the first
// accepted attestation per proposal wins and later ones are rejected.
// Execute never blocks on this: it reads the stored result synchronously.
func (uc GovernanceUseCase) SubmitAttestation(ctx context.Context, cmd SubmitAttestationCommand) (entities.Attestation, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("attestation submit processing started",
		"event", "governance_attestation_submit_started",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", strings.TrimSpace(cmd.ProposalID),
		"attestor_id", strings.TrimSpace(cmd.AttestorID),
		"verified", cmd.Verified,
	)
	if strings.TrimSpace(cmd.ProposalID) == "" {
		return entities.Attestation{}, domainerrors.ErrInvalidAttestationInput
	}
	if strings.TrimSpace(cmd.AttestorID) == "" ||
		!strings.EqualFold(strings.TrimSpace(cmd.AttestorID), strings.TrimSpace(uc.AttestorID)) {
		logger.Warn("attestation rejected for unauthorized attestor",
			"event", "governance_attestation_unauthorized",
			"module", "model-governance/governance-service",
			"layer", "application",
			"proposal_id", strings.TrimSpace(cmd.ProposalID),
			"attestor_id", strings.TrimSpace(cmd.AttestorID),
		)
		return entities.Attestation{}, domainerrors.ErrNotAttestor
	}
	if _, _, err := services.ParseProofRef(cmd.ProofRef); err != nil {
		return entities.Attestation{}, err
	}

	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
	if err != nil {
		return entities.Attestation{}, err
	}
	if proposal.ProposedProofRef != "" &&
		!strings.EqualFold(proposal.ProposedProofRef, strings.TrimSpace(cmd.ProofRef)) {
		return entities.Attestation{}, domainerrors.ErrProofRefMismatch
	}

	now := uc.now()
	attestation := entities.Attestation{
		ProposalID: proposal.ProposalID,
		Verified:   cmd.Verified,
		ProofRef:   strings.TrimSpace(cmd.ProofRef),
		AttestorID: strings.TrimSpace(cmd.AttestorID),
		RecordedAt: now,
	}
	if err := uc.Attestations.RecordAttestation(ctx, attestation); err != nil {
		return entities.Attestation{}, err
	}
	if err := uc.appendProposalEvent(ctx, "attestation.recorded", proposal, now, map[string]any{
		"attestor_id": attestation.AttestorID,
		"verified":    attestation.Verified,
		"proof_ref":   attestation.ProofRef,
		"recorded_at": now.Format(time.RFC3339),
	}); err != nil {
		return entities.Attestation{}, err
	}

	logger.Info("attestation recorded",
		"event", "governance_attestation_recorded",
		"module", "model-governance/governance-service",
		"layer", "application",
		"proposal_id", attestation.ProposalID,
		"attestor_id", attestation.AttestorID,
		"verified", attestation.Verified,
	)
	return attestation, nil
}
