package errors

import "errors"

var (
	ErrInvalidProposalInput    = errors.New("invalid proposal input")
	ErrInvalidArtifactRef      = errors.New("artifact reference is empty or malformed")
	ErrInvalidProofRef         = errors.New("proof reference is malformed or scheme unsupported")
	ErrInvalidVoteInput        = errors.New("invalid vote input")
	ErrInvalidAttestationInput = errors.New("invalid attestation input")
	ErrProofRefMismatch        = errors.New("attestation proof reference does not match proposal")
	ErrIdempotencyKeyRequired  = errors.New("idempotency key is required")

	ErrNotAttestor = errors.New("caller is not the configured attestor authority")
	ErrNotCreator  = errors.New("only the proposal creator may cancel")

	ErrProposalNotFound    = errors.New("proposal not found")
	ErrAttestationNotFound = errors.New("attestation not found")
	ErrRegistryNotFound    = errors.New("model registry record not found")

	ErrProposalNotOpen      = errors.New("proposal is not open")
	ErrVotingClosed         = errors.New("voting deadline has passed")
	ErrDuplicateVote        = errors.New("voter already voted on this proposal")
	ErrDuplicateAttestation = errors.New("attestation already recorded for this proposal")
	ErrProposalNotPassed    = errors.New("proposal has not passed")
	ErrProposalHasVotes     = errors.New("proposal already has votes")
	ErrIdempotencyConflict  = errors.New("idempotency key conflict")

	ErrRegistryVersionMismatch = errors.New("registry version mismatch")

	ErrVerificationRequired = errors.New("required attestation is missing or negative")

	ErrTallyNotReady = errors.New("voting deadline has not passed yet")
)

// Kind buckets sentinel errors into the governance error taxonomy so the
// transport layer maps status codes without enumerating every sentinel.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindState         Kind = "state"
	KindConcurrency   Kind = "concurrency"
	KindVerification  Kind = "verification"
	KindNotReady      Kind = "not_ready"
	KindInternal      Kind = "internal"
)

func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidProposalInput),
		errors.Is(err, ErrInvalidArtifactRef),
		errors.Is(err, ErrInvalidProofRef),
		errors.Is(err, ErrInvalidVoteInput),
		errors.Is(err, ErrInvalidAttestationInput),
		errors.Is(err, ErrProofRefMismatch),
		errors.Is(err, ErrIdempotencyKeyRequired):
		return KindValidation
	case errors.Is(err, ErrNotAttestor),
		errors.Is(err, ErrNotCreator):
		return KindAuthorization
	case errors.Is(err, ErrProposalNotFound),
		errors.Is(err, ErrAttestationNotFound),
		errors.Is(err, ErrRegistryNotFound):
		return KindNotFound
	case errors.Is(err, ErrProposalNotOpen),
		errors.Is(err, ErrVotingClosed),
		errors.Is(err, ErrDuplicateVote),
		errors.Is(err, ErrDuplicateAttestation),
		errors.Is(err, ErrProposalNotPassed),
		errors.Is(err, ErrProposalHasVotes),
		errors.Is(err, ErrIdempotencyConflict):
		return KindState
	case errors.Is(err, ErrRegistryVersionMismatch):
		return KindConcurrency
	case errors.Is(err, ErrVerificationRequired):
		return KindVerification
	case errors.Is(err, ErrTallyNotReady):
		return KindNotReady
	default:
		return KindInternal
	}
}

// Retryable reports whether the caller may safely retry the same request.
// Concurrency mismatches resolve by re-reading the registry version;
// not-ready and pending-verification states resolve with time.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConcurrency, KindNotReady, KindVerification:
		return true
	default:
		return false
	}
}
