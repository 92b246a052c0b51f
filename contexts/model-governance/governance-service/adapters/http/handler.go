package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "aegis/contexts/model-governance/governance-service/application"
	"aegis/contexts/model-governance/governance-service/application/commands"
	"aegis/contexts/model-governance/governance-service/application/queries"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	httptransport "aegis/contexts/model-governance/governance-service/transport/http"
)

type Handler struct {
	Governance commands.GovernanceUseCase
	Proposals  queries.ProposalUseCase
	Registry   queries.RegistryUseCase
	Logger     *slog.Logger
}

// GetModelHandler godoc
// @Summary Get the current registry model
// @Description Returns the single registered model pointer with its version.
// @Tags model-governance
// @Accept json
// @Produce json
// @Success 200 {object} httptransport.GetModelResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /registry/model [get]
func (h Handler) GetModelHandler(ctx context.Context) (httptransport.GetModelResponse, error) {
	record, err := h.Registry.CurrentModel(ctx)
	if err != nil {
		return httptransport.GetModelResponse{}, err
	}
	return httptransport.GetModelResponse{Item: mapModel(record)}, nil
}

// CreateProposalHandler godoc
// @Summary Create a governance proposal
// @Description Opens a proposal targeting a model update or training run.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Caller id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body httptransport.CreateProposalRequest true "Proposal payload"
// @Success 200 {object} httptransport.CreateProposalResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals [post]
func (h Handler) CreateProposalHandler(
	ctx context.Context,
	userID string,
	req httptransport.CreateProposalRequest,
	idempotencyKey string,
) (httptransport.CreateProposalResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("create proposal request received",
		"event", "http_create_proposal_received",
		"module", "model-governance/governance-service",
		"layer", "transport",
		"creator_id", userID,
	)

	deadline, err := parseTimestamp(req.Deadline)
	if err != nil {
		return httptransport.CreateProposalResponse{}, domainerrors.ErrInvalidProposalInput
	}

	result, err := h.Governance.CreateProposal(ctx, commands.CreateProposalCommand{
		CreatorID:            userID,
		IdempotencyKey:       idempotencyKey,
		Description:          req.Description,
		TargetParam:          req.TargetParam,
		ArtifactRef:          req.ArtifactRef,
		ProofRef:             req.ProofRef,
		CompressionTag:       req.CompressionTag,
		QuorumThreshold:      req.QuorumThreshold,
		Deadline:             deadline,
		RequiresVerification: req.RequiresVerification,
	})
	if err != nil {
		return httptransport.CreateProposalResponse{}, err
	}
	return httptransport.CreateProposalResponse{
		Item:     mapProposal(result.Proposal),
		Replayed: result.Replayed,
	}, nil
}

// GetProposalHandler godoc
// @Summary Get proposal details
// @Description Returns one proposal by id including the live tally counters.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.GetProposalResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals/{proposal_id} [get]
func (h Handler) GetProposalHandler(ctx context.Context, proposalID string) (httptransport.GetProposalResponse, error) {
	proposal, err := h.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return httptransport.GetProposalResponse{}, err
	}
	return httptransport.GetProposalResponse{Item: mapProposal(proposal)}, nil
}

// ListProposalsHandler godoc
// @Summary List governance proposals
// @Description Returns proposals in creation order, optionally filtered by status.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param status query string false "Status filter: open,passed,rejected,executed,cancelled"
// @Success 200 {object} httptransport.ListProposalsResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals [get]
func (h Handler) ListProposalsHandler(ctx context.Context, status string) (httptransport.ListProposalsResponse, error) {
	items, err := h.Proposals.ListProposals(ctx, entities.ProposalStatus(strings.TrimSpace(status)))
	if err != nil {
		return httptransport.ListProposalsResponse{}, err
	}
	return httptransport.ListProposalsResponse{Items: mapProposals(items)}, nil
}

// CancelProposalHandler godoc
// @Summary Cancel an open proposal
// @Description Creator-only cancellation, rejected once any vote exists.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Caller id"
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.CancelProposalResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals/{proposal_id} [delete]
func (h Handler) CancelProposalHandler(ctx context.Context, userID string, proposalID string) (httptransport.CancelProposalResponse, error) {
	proposal, err := h.Governance.CancelProposal(ctx, commands.CancelProposalCommand{
		ProposalID: proposalID,
		CallerID:   userID,
	})
	if err != nil {
		return httptransport.CancelProposalResponse{}, err
	}
	return httptransport.CancelProposalResponse{Item: mapProposal(proposal)}, nil
}

// CastVoteHandler godoc
// @Summary Cast a vote on an open proposal
// @Description Records one weighted ballot per voter per proposal.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Voter id"
// @Param Idempotency-Key header string false "Idempotency key"
// @Param proposal_id path string true "Proposal id"
// @Param request body httptransport.CastVoteRequest true "Ballot payload"
// @Success 200 {object} httptransport.CastVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals/{proposal_id}/votes [post]
func (h Handler) CastVoteHandler(
	ctx context.Context,
	userID string,
	proposalID string,
	req httptransport.CastVoteRequest,
	idempotencyKey string,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Governance.CastVote(ctx, commands.CastVoteCommand{
		ProposalID:     proposalID,
		VoterID:        userID,
		IdempotencyKey: idempotencyKey,
		Direction:      entities.VoteDirection(strings.ToLower(strings.TrimSpace(req.Direction))),
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		Vote:     mapVote(result.Vote),
		Proposal: mapProposal(result.Proposal),
		Replayed: result.Replayed,
	}, nil
}

// ListVotesHandler godoc
// @Summary List votes on a proposal
// @Description Returns the full ballot ledger in cast order.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.ListVotesResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals/{proposal_id}/votes [get]
func (h Handler) ListVotesHandler(ctx context.Context, proposalID string) (httptransport.ListVotesResponse, error) {
	votes, err := h.Proposals.ProposalVotes(ctx, proposalID)
	if err != nil {
		return httptransport.ListVotesResponse{}, err
	}
	items := make([]httptransport.VoteDTO, 0, len(votes))
	for _, vote := range votes {
		items = append(items, mapVote(vote))
	}
	return httptransport.ListVotesResponse{Items: items}, nil
}

// TallyProposalHandler godoc
// @Summary Tally a proposal after its deadline
// @Description Applies the quorum and majority rule and decides the proposal.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.TallyResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals/{proposal_id}/tally [post]
func (h Handler) TallyProposalHandler(ctx context.Context, proposalID string) (httptransport.TallyResponse, error) {
	result, err := h.Governance.Tally(ctx, commands.TallyCommand{ProposalID: proposalID})
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return httptransport.TallyResponse{
		Item:    mapProposal(result.Proposal),
		Changed: result.Changed,
	}, nil
}

// SubmitAttestationHandler godoc
// @Summary Record a proof verification attestation
// @Description Accepts the configured attestor's verdict, first write wins.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param X-Attestor-Id header string true "Attestor id"
// @Param proposal_id path string true "Proposal id"
// @Param request body httptransport.SubmitAttestationRequest true "Attestation payload"
// @Success 200 {object} httptransport.AttestationResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals/{proposal_id}/attestation [post]
func (h Handler) SubmitAttestationHandler(
	ctx context.Context,
	attestorID string,
	proposalID string,
	req httptransport.SubmitAttestationRequest,
) (httptransport.AttestationResponse, error) {
	attestation, err := h.Governance.SubmitAttestation(ctx, commands.SubmitAttestationCommand{
		ProposalID: proposalID,
		AttestorID: attestorID,
		Verified:   req.Verified,
		ProofRef:   req.ProofRef,
	})
	if err != nil {
		return httptransport.AttestationResponse{}, err
	}
	return mapAttestation(attestation), nil
}

// GetAttestationHandler godoc
// @Summary Get the recorded attestation for a proposal
// @Description Returns the stored verification verdict if one exists.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.AttestationResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals/{proposal_id}/attestation [get]
func (h Handler) GetAttestationHandler(ctx context.Context, proposalID string) (httptransport.AttestationResponse, error) {
	attestation, err := h.Proposals.ProposalAttestation(ctx, proposalID)
	if err != nil {
		return httptransport.AttestationResponse{}, err
	}
	return mapAttestation(attestation), nil
}

// ExecuteProposalHandler godoc
// @Summary Execute a passed proposal
// @Description Repoints the registry under optimistic concurrency and marks the proposal executed.
// @Tags model-governance
// @Accept json
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Param request body httptransport.ExecuteProposalRequest true "Expected registry version"
// @Success 200 {object} httptransport.ExecuteProposalResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /governance/proposals/{proposal_id}/execute [post]
func (h Handler) ExecuteProposalHandler(
	ctx context.Context,
	proposalID string,
	req httptransport.ExecuteProposalRequest,
) (httptransport.ExecuteProposalResponse, error) {
	result, err := h.Governance.Execute(ctx, commands.ExecuteCommand{
		ProposalID:              proposalID,
		ExpectedRegistryVersion: req.ExpectedRegistryVersion,
	})
	if err != nil {
		return httptransport.ExecuteProposalResponse{}, err
	}
	return httptransport.ExecuteProposalResponse{
		Registry:        mapModel(result.Registry),
		Item:            mapProposal(result.Proposal),
		AlreadyExecuted: result.AlreadyExecuted,
	}, nil
}

func mapProposals(proposals []entities.Proposal) []httptransport.ProposalDTO {
	items := make([]httptransport.ProposalDTO, 0, len(proposals))
	for _, proposal := range proposals {
		items = append(items, mapProposal(proposal))
	}
	return items
}

func mapProposal(proposal entities.Proposal) httptransport.ProposalDTO {
	return httptransport.ProposalDTO{
		ProposalID:           proposal.ProposalID,
		CreatorID:            proposal.CreatorID,
		Description:          proposal.Description,
		TargetParam:          proposal.TargetParam,
		ProposedArtifactRef:  proposal.ProposedArtifactRef,
		ProposedProofRef:     proposal.ProposedProofRef,
		ProposedCompression:  proposal.ProposedCompression,
		QuorumThreshold:      proposal.QuorumThreshold,
		Deadline:             formatTimestamp(proposal.Deadline),
		RequiresVerification: proposal.RequiresVerification,
		VotesFor:             proposal.VotesFor,
		VotesAgainst:         proposal.VotesAgainst,
		Status:               string(proposal.Status),
		TrainingJobID:        proposal.TrainingJobID,
		CreatedAt:            formatTimestamp(proposal.CreatedAt),
		TalliedAt:            formatOptionalTimestamp(proposal.TalliedAt),
		ExecutedAt:           formatOptionalTimestamp(proposal.ExecutedAt),
	}
}

func mapVote(vote entities.Vote) httptransport.VoteDTO {
	return httptransport.VoteDTO{
		ProposalID: vote.ProposalID,
		VoterID:    vote.VoterID,
		Direction:  string(vote.Direction),
		Weight:     vote.Weight,
		CastAt:     formatTimestamp(vote.CastAt),
	}
}

func mapAttestation(attestation entities.Attestation) httptransport.AttestationResponse {
	return httptransport.AttestationResponse{
		ProposalID: attestation.ProposalID,
		Verified:   attestation.Verified,
		ProofRef:   attestation.ProofRef,
		AttestorID: attestation.AttestorID,
		RecordedAt: formatTimestamp(attestation.RecordedAt),
	}
}

func mapModel(record entities.ModelRecord) httptransport.ModelDTO {
	return httptransport.ModelDTO{
		ArtifactRef:    record.ArtifactRef,
		ProofRef:       record.ProofRef,
		CompressionTag: record.CompressionTag,
		Version:        record.Version,
		UpdatedAt:      formatTimestamp(record.UpdatedAt),
	}
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

func formatOptionalTimestamp(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTimestamp(*value)
}
