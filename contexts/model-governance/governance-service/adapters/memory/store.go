package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

type holdingPoint struct {
	weight      int64
	effectiveAt time.Time
}

// Store is the in-memory adapter implementing every governance port behind
// a single mutex, which makes the atomicity contracts (CastVote,
// ApplyExecution) trivial to honor.
type Store struct {
	mu sync.RWMutex

	registry     entities.ModelRecord
	proposals    map[string]entities.Proposal
	votes        map[string]entities.Vote
	attestations map[string]entities.Attestation
	holdings     map[string][]holdingPoint
	idempotency  map[string]ports.IdempotencyRecord
	outbox       map[string]outboxRecord
	eventDedup   map[string]dedupRecord

	jobRequests []ports.TrainingJobRequest
	jobErr      error
}

// NewStore seeds the registry singleton at version 1 when the genesis
// record carries no version.
func NewStore(genesis entities.ModelRecord) *Store {
	if genesis.Version == 0 {
		genesis.Version = 1
	}
	if genesis.UpdatedAt.IsZero() {
		genesis.UpdatedAt = time.Now().UTC()
	}
	return &Store{
		registry:     genesis,
		proposals:    make(map[string]entities.Proposal),
		votes:        make(map[string]entities.Vote),
		attestations: make(map[string]entities.Attestation),
		holdings:     make(map[string][]holdingPoint),
		idempotency:  make(map[string]ports.IdempotencyRecord),
		outbox:       make(map[string]outboxRecord),
		eventDedup:   make(map[string]dedupRecord),
	}
}

// SetHolding records a voter's token balance effective from the given
// instant. WeightAt resolves the latest point at or before the snapshot.
func (s *Store) SetHolding(voterID string, weight int64, effectiveAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(voterID)
	s.holdings[key] = append(s.holdings[key], holdingPoint{
		weight:      weight,
		effectiveAt: effectiveAt.UTC(),
	})
	sort.Slice(s.holdings[key], func(i, j int) bool {
		return s.holdings[key][i].effectiveAt.Before(s.holdings[key][j].effectiveAt)
	})
}

// FailTrainingDispatch makes RequestTrainingJob return the given error.
func (s *Store) FailTrainingDispatch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobErr = err
}

// TrainingJobRequests returns a copy of every dispatched job descriptor.
func (s *Store) TrainingJobRequests() []ports.TrainingJobRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.TrainingJobRequest(nil), s.jobRequests...)
}

func (s *Store) SaveProposal(_ context.Context, proposal entities.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[strings.TrimSpace(proposal.ProposalID)] = proposal
	return nil
}

func (s *Store) GetProposal(_ context.Context, proposalID string) (entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	return proposal, nil
}

func (s *Store) ListProposals(_ context.Context, status entities.ProposalStatus) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Proposal, 0, len(s.proposals))
	for _, proposal := range s.proposals {
		if status != "" && proposal.Status != status {
			continue
		}
		items = append(items, proposal)
	}
	sortProposalsByCreation(items)
	return items, nil
}

func (s *Store) ListUndispatchedTrainingProposals(_ context.Context, limit int) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	items := make([]entities.Proposal, 0)
	for _, proposal := range s.proposals {
		if proposal.Status != entities.ProposalStatusExecuted {
			continue
		}
		if !proposal.IsTrainingAction() || proposal.TrainingJobID != "" {
			continue
		}
		items = append(items, proposal)
	}
	sortProposalsByCreation(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) CastVote(_ context.Context, vote entities.Vote) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposalID := strings.TrimSpace(vote.ProposalID)
	proposal, ok := s.proposals[proposalID]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	key := voteKey(proposalID, vote.VoterID)
	if _, exists := s.votes[key]; exists {
		return entities.Proposal{}, domainerrors.ErrDuplicateVote
	}

	s.votes[key] = vote
	if vote.Direction == entities.VoteDirectionFor {
		proposal.VotesFor += vote.Weight
	} else {
		proposal.VotesAgainst += vote.Weight
	}
	proposal.UpdatedAt = vote.CastAt.UTC()
	s.proposals[proposalID] = proposal
	return proposal, nil
}

func (s *Store) GetVote(_ context.Context, proposalID string, voterID string) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[voteKey(proposalID, voterID)]
	return vote, ok, nil
}

func (s *Store) ListVotesByProposal(_ context.Context, proposalID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.ProposalID == strings.TrimSpace(proposalID) {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CastAt.Equal(items[j].CastAt) {
			return items[i].VoterID < items[j].VoterID
		}
		return items[i].CastAt.Before(items[j].CastAt)
	})
	return items, nil
}

func (s *Store) RecordAttestation(_ context.Context, attestation entities.Attestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(attestation.ProposalID)
	if _, exists := s.attestations[key]; exists {
		return domainerrors.ErrDuplicateAttestation
	}
	s.attestations[key] = attestation
	return nil
}

func (s *Store) GetAttestation(_ context.Context, proposalID string) (entities.Attestation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attestation, ok := s.attestations[strings.TrimSpace(proposalID)]
	return attestation, ok, nil
}

func (s *Store) GetRegistry(_ context.Context) (entities.ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry, nil
}

// ApplyExecution performs the registry compare-and-swap and the proposal
// transition under one lock: exactly one concurrent caller per expected
// version can win.
func (s *Store) ApplyExecution(_ context.Context, update ports.ExecutionUpdate) (entities.ModelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.Version != update.ExpectedVersion {
		return entities.ModelRecord{}, domainerrors.ErrRegistryVersionMismatch
	}
	proposalID := strings.TrimSpace(update.ProposalID)
	proposal, ok := s.proposals[proposalID]
	if !ok {
		return entities.ModelRecord{}, domainerrors.ErrProposalNotFound
	}
	if proposal.Status != entities.ProposalStatusPassed {
		return entities.ModelRecord{}, domainerrors.ErrProposalNotPassed
	}

	executedAt := update.ExecutedAt.UTC()
	s.registry.ArtifactRef = strings.TrimSpace(update.ArtifactRef)
	s.registry.ProofRef = strings.TrimSpace(update.ProofRef)
	s.registry.CompressionTag = strings.TrimSpace(update.CompressionTag)
	s.registry.Version++
	s.registry.UpdatedAt = executedAt

	proposal.Status = entities.ProposalStatusExecuted
	proposal.ExecutedAt = &executedAt
	proposal.UpdatedAt = executedAt
	s.proposals[proposalID] = proposal

	return s.registry, nil
}

func (s *Store) WeightAt(_ context.Context, voterID string, asOf time.Time) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points := s.holdings[strings.TrimSpace(voterID)]
	var weight int64
	found := false
	for _, point := range points {
		if point.effectiveAt.After(asOf.UTC()) {
			break
		}
		weight = point.weight
		found = true
	}
	return weight, found, nil
}

func (s *Store) RequestTrainingJob(_ context.Context, request ports.TrainingJobRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobErr != nil {
		return "", s.jobErr
	}
	s.jobRequests = append(s.jobRequests, request)
	return "job-" + uuid.NewString(), nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	existing, exists := s.idempotency[key]
	if exists {
		if existing.RequestHash != record.RequestHash || existing.EntityID != record.EntityID {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		EntityID:    strings.TrimSpace(record.EntityID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrIdempotencyConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrIdempotencyConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func voteKey(proposalID string, voterID string) string {
	return strings.TrimSpace(proposalID) + "/" + strings.TrimSpace(voterID)
}

func sortProposalsByCreation(items []entities.Proposal) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ProposalID < items[j].ProposalID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

var _ ports.ProposalRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.AttestationRepository = (*Store)(nil)
var _ ports.RegistryRepository = (*Store)(nil)
var _ ports.WeightSource = (*Store)(nil)
var _ ports.ComputeMarketplace = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
