package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	governanceservice "aegis/contexts/model-governance/governance-service"
	governanceerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	governancehttp "aegis/contexts/model-governance/governance-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "aegis/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	governance governanceservice.Module
}

func New(governance governanceservice.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		governance: governance,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Mux exposes the route table for in-process test harnesses.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /v1/registry/model", s.handleGetModel)

	s.mux.HandleFunc("POST /v1/governance/proposals", s.handleCreateProposal)
	s.mux.HandleFunc("GET /v1/governance/proposals", s.handleListProposals)
	s.mux.HandleFunc("GET /v1/governance/proposals/{proposal_id}", s.handleGetProposal)
	s.mux.HandleFunc("DELETE /v1/governance/proposals/{proposal_id}", s.handleCancelProposal)
	s.mux.HandleFunc("POST /v1/governance/proposals/{proposal_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /v1/governance/proposals/{proposal_id}/votes", s.handleListVotes)
	s.mux.HandleFunc("POST /v1/governance/proposals/{proposal_id}/tally", s.handleTallyProposal)
	s.mux.HandleFunc("POST /v1/governance/proposals/{proposal_id}/attestation", s.handleSubmitAttestation)
	s.mux.HandleFunc("GET /v1/governance/proposals/{proposal_id}/attestation", s.handleGetAttestation)
	s.mux.HandleFunc("POST /v1/governance/proposals/{proposal_id}/execute", s.handleExecuteProposal)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.GetModelHandler(r.Context())
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req governancehttp.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.governance.Handler.CreateProposalHandler(
		r.Context(),
		userID,
		req,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ListProposalsHandler(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.GetProposalHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelProposal(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.governance.Handler.CancelProposalHandler(r.Context(), userID, r.PathValue("proposal_id"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req governancehttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.governance.Handler.CastVoteHandler(
		r.Context(),
		userID,
		r.PathValue("proposal_id"),
		req,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ListVotesHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTallyProposal(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.TallyProposalHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitAttestation(w http.ResponseWriter, r *http.Request) {
	attestorID := r.Header.Get("X-Attestor-Id")
	if strings.TrimSpace(attestorID) == "" {
		attestorID = r.Header.Get("X-User-Id")
	}
	if strings.TrimSpace(attestorID) == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_attestor", "X-Attestor-Id header is required")
		return
	}

	var req governancehttp.SubmitAttestationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.governance.Handler.SubmitAttestationHandler(
		r.Context(),
		attestorID,
		r.PathValue("proposal_id"),
		req,
	)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAttestation(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.GetAttestationHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.ExecuteProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.governance.Handler.ExecuteProposalHandler(r.Context(), r.PathValue("proposal_id"), req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeGovernanceDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, governanceerrors.ErrInvalidProposalInput):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_proposal", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidArtifactRef):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_artifact_ref", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidProofRef):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_proof_ref", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidVoteInput):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_vote", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidAttestationInput):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_attestation", err.Error())
	case errors.Is(err, governanceerrors.ErrProofRefMismatch):
		writeGovernanceError(w, http.StatusBadRequest, "proof_ref_mismatch", err.Error())
	case errors.Is(err, governanceerrors.ErrIdempotencyKeyRequired):
		writeGovernanceError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, governanceerrors.ErrNotAttestor):
		writeGovernanceError(w, http.StatusForbidden, "not_attestor", err.Error())
	case errors.Is(err, governanceerrors.ErrNotCreator):
		writeGovernanceError(w, http.StatusForbidden, "not_creator", err.Error())
	case errors.Is(err, governanceerrors.ErrProposalNotFound):
		writeGovernanceError(w, http.StatusNotFound, "proposal_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrAttestationNotFound):
		writeGovernanceError(w, http.StatusNotFound, "attestation_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrRegistryNotFound):
		writeGovernanceError(w, http.StatusNotFound, "registry_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrProposalNotOpen):
		writeGovernanceError(w, http.StatusConflict, "proposal_not_open", err.Error())
	case errors.Is(err, governanceerrors.ErrVotingClosed):
		writeGovernanceError(w, http.StatusConflict, "voting_closed", err.Error())
	case errors.Is(err, governanceerrors.ErrDuplicateVote):
		writeGovernanceError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, governanceerrors.ErrDuplicateAttestation):
		writeGovernanceError(w, http.StatusConflict, "duplicate_attestation", err.Error())
	case errors.Is(err, governanceerrors.ErrProposalNotPassed):
		writeGovernanceError(w, http.StatusConflict, "proposal_not_passed", err.Error())
	case errors.Is(err, governanceerrors.ErrProposalHasVotes):
		writeGovernanceError(w, http.StatusConflict, "proposal_has_votes", err.Error())
	case errors.Is(err, governanceerrors.ErrIdempotencyConflict):
		writeGovernanceError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, governanceerrors.ErrRegistryVersionMismatch):
		writeGovernanceError(w, http.StatusConflict, "registry_version_mismatch", err.Error())
	case errors.Is(err, governanceerrors.ErrVerificationRequired):
		writeGovernanceError(w, http.StatusConflict, "verification_required", err.Error())
	case errors.Is(err, governanceerrors.ErrTallyNotReady):
		writeGovernanceError(w, http.StatusConflict, "tally_not_ready", err.Error())
	default:
		writeGovernanceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGovernanceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, governancehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
