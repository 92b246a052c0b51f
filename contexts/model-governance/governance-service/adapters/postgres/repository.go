package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"

	registrySingletonID = "model-registry"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// EnsureRegistry seeds the registry singleton with the genesis record. An
// existing row is left untouched so restarts never reset the version chain.
func (r *Repository) EnsureRegistry(ctx context.Context, genesis entities.ModelRecord) error {
	if genesis.Version == 0 {
		genesis.Version = 1
	}
	if genesis.UpdatedAt.IsZero() {
		genesis.UpdatedAt = time.Now().UTC()
	}
	row := registryModelFromEntity(genesis)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "registry_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) SaveProposal(ctx context.Context, proposal entities.Proposal) error {
	row := proposalModelFromEntity(proposal)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "proposal_id"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	var row proposalModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, domainerrors.ErrProposalNotFound
		}
		return entities.Proposal{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListProposals(ctx context.Context, status entities.ProposalStatus) ([]entities.Proposal, error) {
	tx := r.db.WithContext(ctx).Model(&proposalModel{})
	if status != "" {
		tx = tx.Where("status = ?", string(status))
	}

	var rows []proposalModel
	if err := tx.
		Order("created_at ASC").
		Order("proposal_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListUndispatchedTrainingProposals(ctx context.Context, limit int) ([]entities.Proposal, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []proposalModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.ProposalStatusExecuted)).
		Where("LOWER(target_param) = ?", "train").
		Where("training_job_id = ''").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// CastVote inserts the vote and bumps the matching tally counter in one
// transaction, so counters always equal the sum of stored vote weights.
func (r *Repository) CastVote(ctx context.Context, vote entities.Vote) (entities.Proposal, error) {
	var updated proposalModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		voteRow := voteModelFromEntity(vote)
		if err := tx.Create(&voteRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateVote
			}
			return err
		}

		counter := "votes_for"
		if vote.Direction == entities.VoteDirectionAgainst {
			counter = "votes_against"
		}
		result := tx.Model(&proposalModel{}).
			Where("proposal_id = ?", vote.ProposalID).
			Updates(map[string]any{
				counter:      gorm.Expr(counter+" + ?", vote.Weight),
				"updated_at": vote.CastAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrProposalNotFound
		}

		return tx.Where("proposal_id = ?", vote.ProposalID).First(&updated).Error
	})
	if err != nil {
		return entities.Proposal{}, err
	}
	return updated.toEntity(), nil
}

func (r *Repository) GetVote(ctx context.Context, proposalID string, voterID string) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND voter_id = ?", proposalID, voterID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListVotesByProposal(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("cast_at ASC").
		Order("voter_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// RecordAttestation is first-wins: the proposal id primary key rejects a
// second attestation for the same proposal.
func (r *Repository) RecordAttestation(ctx context.Context, attestation entities.Attestation) error {
	row := attestationModelFromEntity(attestation)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateAttestation
		}
		return err
	}
	return nil
}

func (r *Repository) GetAttestation(ctx context.Context, proposalID string) (entities.Attestation, bool, error) {
	var row attestationModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Attestation{}, false, nil
		}
		return entities.Attestation{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetRegistry(ctx context.Context) (entities.ModelRecord, error) {
	var row registryModel
	err := r.db.WithContext(ctx).
		Where("registry_id = ?", registrySingletonID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ModelRecord{}, domainerrors.ErrRegistryNotFound
		}
		return entities.ModelRecord{}, err
	}
	return row.toEntity(), nil
}

// ApplyExecution swaps the registry pointer and marks the proposal executed
// in one transaction. The version guard on the UPDATE makes concurrent
// executions against the same expected version lose cleanly.
func (r *Repository) ApplyExecution(ctx context.Context, update ports.ExecutionUpdate) (entities.ModelRecord, error) {
	var swapped registryModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		executedAt := update.ExecutedAt.UTC()

		result := tx.Model(&registryModel{}).
			Where("registry_id = ? AND version = ?", registrySingletonID, update.ExpectedVersion).
			Updates(map[string]any{
				"artifact_ref":    update.ArtifactRef,
				"proof_ref":       update.ProofRef,
				"compression_tag": update.CompressionTag,
				"version":         gorm.Expr("version + 1"),
				"updated_at":      executedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var current registryModel
			if err := tx.Where("registry_id = ?", registrySingletonID).First(&current).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domainerrors.ErrRegistryNotFound
				}
				return err
			}
			return domainerrors.ErrRegistryVersionMismatch
		}

		proposalResult := tx.Model(&proposalModel{}).
			Where("proposal_id = ? AND status = ?", update.ProposalID, string(entities.ProposalStatusPassed)).
			Updates(map[string]any{
				"status":      string(entities.ProposalStatusExecuted),
				"executed_at": executedAt,
				"updated_at":  executedAt,
			})
		if proposalResult.Error != nil {
			return proposalResult.Error
		}
		if proposalResult.RowsAffected == 0 {
			return domainerrors.ErrProposalNotPassed
		}

		return tx.Where("registry_id = ?", registrySingletonID).First(&swapped).Error
	})
	if err != nil {
		return entities.ModelRecord{}, err
	}
	return swapped.toEntity(), nil
}

// WeightAt resolves the voter's balance from the latest holding snapshot at
// or before the given instant.
func (r *Repository) WeightAt(ctx context.Context, voterID string, asOf time.Time) (int64, bool, error) {
	var row holdingSnapshotModel
	err := r.db.WithContext(ctx).
		Where("voter_id = ? AND effective_at <= ?", voterID, asOf.UTC()).
		Order("effective_at DESC").
		Limit(1).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return row.Weight, true, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", key).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return row.toPort(), true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModelFromPort(record)
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", record.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     eventID,
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return false, createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", eventID).
		First(&existing).
		Error; err != nil {
		return false, err
	}
	if existing.PayloadHash != payloadHash {
		return false, domainerrors.ErrIdempotencyConflict
	}
	return true, nil
}

type registryModel struct {
	RegistryID     string    `gorm:"column:registry_id;primaryKey"`
	ArtifactRef    string    `gorm:"column:artifact_ref"`
	ProofRef       string    `gorm:"column:proof_ref"`
	CompressionTag string    `gorm:"column:compression_tag"`
	Version        uint64    `gorm:"column:version"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (registryModel) TableName() string {
	return "model_registry"
}

func registryModelFromEntity(record entities.ModelRecord) registryModel {
	return registryModel{
		RegistryID:     registrySingletonID,
		ArtifactRef:    record.ArtifactRef,
		ProofRef:       record.ProofRef,
		CompressionTag: record.CompressionTag,
		Version:        record.Version,
		UpdatedAt:      record.UpdatedAt.UTC(),
	}
}

func (m registryModel) toEntity() entities.ModelRecord {
	return entities.ModelRecord{
		ArtifactRef:    m.ArtifactRef,
		ProofRef:       m.ProofRef,
		CompressionTag: m.CompressionTag,
		Version:        m.Version,
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type proposalModel struct {
	ProposalID           string     `gorm:"column:proposal_id;primaryKey"`
	CreatorID            string     `gorm:"column:creator_id"`
	Description          string     `gorm:"column:description"`
	TargetParam          string     `gorm:"column:target_param"`
	ProposedArtifactRef  string     `gorm:"column:proposed_artifact_ref"`
	ProposedProofRef     string     `gorm:"column:proposed_proof_ref"`
	ProposedCompression  string     `gorm:"column:proposed_compression"`
	QuorumThreshold      int64      `gorm:"column:quorum_threshold"`
	Deadline             time.Time  `gorm:"column:deadline"`
	RequiresVerification bool       `gorm:"column:requires_verification"`
	VotesFor             int64      `gorm:"column:votes_for"`
	VotesAgainst         int64      `gorm:"column:votes_against"`
	Status               string     `gorm:"column:status"`
	TrainingJobID        string     `gorm:"column:training_job_id"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
	TalliedAt            *time.Time `gorm:"column:tallied_at"`
	ExecutedAt           *time.Time `gorm:"column:executed_at"`
}

func (proposalModel) TableName() string {
	return "governance_proposals"
}

func proposalModelFromEntity(proposal entities.Proposal) proposalModel {
	return proposalModel{
		ProposalID:           proposal.ProposalID,
		CreatorID:            proposal.CreatorID,
		Description:          proposal.Description,
		TargetParam:          proposal.TargetParam,
		ProposedArtifactRef:  proposal.ProposedArtifactRef,
		ProposedProofRef:     proposal.ProposedProofRef,
		ProposedCompression:  proposal.ProposedCompression,
		QuorumThreshold:      proposal.QuorumThreshold,
		Deadline:             proposal.Deadline.UTC(),
		RequiresVerification: proposal.RequiresVerification,
		VotesFor:             proposal.VotesFor,
		VotesAgainst:         proposal.VotesAgainst,
		Status:               string(proposal.Status),
		TrainingJobID:        proposal.TrainingJobID,
		CreatedAt:            proposal.CreatedAt.UTC(),
		UpdatedAt:            proposal.UpdatedAt.UTC(),
		TalliedAt:            utcPointer(proposal.TalliedAt),
		ExecutedAt:           utcPointer(proposal.ExecutedAt),
	}
}

func (m proposalModel) toEntity() entities.Proposal {
	return entities.Proposal{
		ProposalID:           m.ProposalID,
		CreatorID:            m.CreatorID,
		Description:          m.Description,
		TargetParam:          m.TargetParam,
		ProposedArtifactRef:  m.ProposedArtifactRef,
		ProposedProofRef:     m.ProposedProofRef,
		ProposedCompression:  m.ProposedCompression,
		QuorumThreshold:      m.QuorumThreshold,
		Deadline:             m.Deadline.UTC(),
		RequiresVerification: m.RequiresVerification,
		VotesFor:             m.VotesFor,
		VotesAgainst:         m.VotesAgainst,
		Status:               entities.ProposalStatus(m.Status),
		TrainingJobID:        m.TrainingJobID,
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
		TalliedAt:            utcPointer(m.TalliedAt),
		ExecutedAt:           utcPointer(m.ExecutedAt),
	}
}

type voteModel struct {
	ProposalID string    `gorm:"column:proposal_id;primaryKey"`
	VoterID    string    `gorm:"column:voter_id;primaryKey"`
	Direction  string    `gorm:"column:direction"`
	Weight     int64     `gorm:"column:weight"`
	CastAt     time.Time `gorm:"column:cast_at"`
}

func (voteModel) TableName() string {
	return "proposal_votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		ProposalID: vote.ProposalID,
		VoterID:    vote.VoterID,
		Direction:  string(vote.Direction),
		Weight:     vote.Weight,
		CastAt:     vote.CastAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		ProposalID: m.ProposalID,
		VoterID:    m.VoterID,
		Direction:  entities.VoteDirection(m.Direction),
		Weight:     m.Weight,
		CastAt:     m.CastAt.UTC(),
	}
}

type attestationModel struct {
	ProposalID string    `gorm:"column:proposal_id;primaryKey"`
	Verified   bool      `gorm:"column:verified"`
	ProofRef   string    `gorm:"column:proof_ref"`
	AttestorID string    `gorm:"column:attestor_id"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
}

func (attestationModel) TableName() string {
	return "proposal_attestations"
}

func attestationModelFromEntity(attestation entities.Attestation) attestationModel {
	return attestationModel{
		ProposalID: attestation.ProposalID,
		Verified:   attestation.Verified,
		ProofRef:   attestation.ProofRef,
		AttestorID: attestation.AttestorID,
		RecordedAt: attestation.RecordedAt.UTC(),
	}
}

func (m attestationModel) toEntity() entities.Attestation {
	return entities.Attestation{
		ProposalID: m.ProposalID,
		Verified:   m.Verified,
		ProofRef:   m.ProofRef,
		AttestorID: m.AttestorID,
		RecordedAt: m.RecordedAt.UTC(),
	}
}

type holdingSnapshotModel struct {
	VoterID     string    `gorm:"column:voter_id;primaryKey"`
	EffectiveAt time.Time `gorm:"column:effective_at;primaryKey"`
	Weight      int64     `gorm:"column:weight"`
}

func (holdingSnapshotModel) TableName() string {
	return "voter_holding_snapshots"
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	EntityID    string    `gorm:"column:entity_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "governance_idempotency"
}

func idempotencyModelFromPort(record ports.IdempotencyRecord) idempotencyModel {
	return idempotencyModel{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		EntityID:    record.EntityID,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
}

func (m idempotencyModel) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:         m.Key,
		RequestHash: m.RequestHash,
		EntityID:    m.EntityID,
		ExpiresAt:   m.ExpiresAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "governance_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "governance_event_dedup"
}

func utcPointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ProposalRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.AttestationRepository = (*Repository)(nil)
var _ ports.RegistryRepository = (*Repository)(nil)
var _ ports.WeightSource = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
