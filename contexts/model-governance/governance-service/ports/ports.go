package ports

import (
	"context"
	"time"

	"aegis/contexts/model-governance/governance-service/domain/entities"
	contractsv1 "aegis/contracts/gen/events/v1"
)

// ProposalRepository owns proposal persistence.
type ProposalRepository interface {
	SaveProposal(ctx context.Context, proposal entities.Proposal) error
	GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error)
	ListProposals(ctx context.Context, status entities.ProposalStatus) ([]entities.Proposal, error)
	// ListUndispatchedTrainingProposals returns executed training proposals
	// that still lack a recorded job id, for dispatch retry.
	ListUndispatchedTrainingProposals(ctx context.Context, limit int) ([]entities.Proposal, error)
}

// VoteRepository owns vote persistence and the vote/tally write boundary.
type VoteRepository interface {
	// CastVote must atomically insert the vote and add its weight to the
	// proposal tally. A duplicate (proposal, voter) pair fails
	// ErrDuplicateVote with both records untouched.
	CastVote(ctx context.Context, vote entities.Vote) (entities.Proposal, error)
	GetVote(ctx context.Context, proposalID string, voterID string) (entities.Vote, bool, error)
	ListVotesByProposal(ctx context.Context, proposalID string) ([]entities.Vote, error)
}

// AttestationRepository stores proof verification outcomes, first-wins.
type AttestationRepository interface {
	// RecordAttestation fails ErrDuplicateAttestation if the proposal
	// already has one.
	RecordAttestation(ctx context.Context, attestation entities.Attestation) error
	GetAttestation(ctx context.Context, proposalID string) (entities.Attestation, bool, error)
}

// ExecutionUpdate is the atomic write applied when a passed proposal
// executes: registry compare-and-swap plus the proposal transition.
type ExecutionUpdate struct {
	ProposalID      string
	ExpectedVersion uint64
	ArtifactRef     string
	ProofRef        string
	CompressionTag  string
	ExecutedAt      time.Time
}

// RegistryRepository owns the registry singleton.
type RegistryRepository interface {
	GetRegistry(ctx context.Context) (entities.ModelRecord, error)
	// ApplyExecution must commit the registry update and the proposal
	// status change together or not at all. A stale ExpectedVersion fails
	// ErrRegistryVersionMismatch with zero side effects.
	ApplyExecution(ctx context.Context, update ExecutionUpdate) (entities.ModelRecord, error)
}

// WeightSource resolves a voter's weight from token holdings as of a
// snapshot instant (proposal creation time).
type WeightSource interface {
	WeightAt(ctx context.Context, voterID string, asOf time.Time) (int64, bool, error)
}

// TrainingJobRequest is the descriptor handed to the compute marketplace.
type TrainingJobRequest struct {
	ProposalID     string
	ArtifactRef    string
	TrainingParams string
	ProofRequired  bool
}

// ComputeMarketplace selects a provider and returns an opaque job id. The
// core does not validate provider selection or await job completion.
type ComputeMarketplace interface {
	RequestTrainingJob(ctx context.Context, request TrainingJobRequest) (string, error)
}

// IdempotencyRecord captures dedupe metadata for mutating requests.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	EntityID    string
	ExpiresAt   time.Time
}

// IdempotencyStore abstracts idempotency persistence with TTL handling.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// Clock allows deterministic testing of deadline/TTL rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts proposal/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// OutboxWriter appends an event in the same logical write as state changes.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventDedupStore provides idempotent processing for consumed events.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
