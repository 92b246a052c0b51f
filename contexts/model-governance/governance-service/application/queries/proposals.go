package queries

import (
	"context"
	"strings"

	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/ports"
)

// ProposalUseCase serves proposal, vote and attestation reads.
type ProposalUseCase struct {
	Proposals    ports.ProposalRepository
	Votes        ports.VoteRepository
	Attestations ports.AttestationRepository
}

func (uc ProposalUseCase) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	if strings.TrimSpace(proposalID) == "" {
		return entities.Proposal{}, domainerrors.ErrInvalidProposalInput
	}
	return uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
}

// ListProposals filters by status when one is given; an empty status lists
// everything in creation order.
func (uc ProposalUseCase) ListProposals(ctx context.Context, status entities.ProposalStatus) ([]entities.Proposal, error) {
	return uc.Proposals.ListProposals(ctx, status)
}

func (uc ProposalUseCase) ProposalVotes(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	if strings.TrimSpace(proposalID) == "" {
		return nil, domainerrors.ErrInvalidProposalInput
	}
	if _, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID)); err != nil {
		return nil, err
	}
	return uc.Votes.ListVotesByProposal(ctx, strings.TrimSpace(proposalID))
}

func (uc ProposalUseCase) ProposalAttestation(ctx context.Context, proposalID string) (entities.Attestation, error) {
	if strings.TrimSpace(proposalID) == "" {
		return entities.Attestation{}, domainerrors.ErrInvalidAttestationInput
	}
	attestation, found, err := uc.Attestations.GetAttestation(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Attestation{}, err
	}
	if !found {
		return entities.Attestation{}, domainerrors.ErrAttestationNotFound
	}
	return attestation, nil
}
