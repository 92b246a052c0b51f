package governanceservice

import (
	"log/slog"
	"time"

	httpadapter "aegis/contexts/model-governance/governance-service/adapters/http"
	"aegis/contexts/model-governance/governance-service/adapters/memory"
	"aegis/contexts/model-governance/governance-service/application/commands"
	"aegis/contexts/model-governance/governance-service/application/queries"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	"aegis/contexts/model-governance/governance-service/ports"
)

// Module is the composition surface for the governance service.
// Runtime wiring should consume Handler; Store is exposed for tests/inspection.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Proposals      ports.ProposalRepository
	Votes          ports.VoteRepository
	Attestations   ports.AttestationRepository
	Registry       ports.RegistryRepository
	Weights        ports.WeightSource
	Marketplace    ports.ComputeMarketplace
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	AttestorID     string
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// NewModule wires governance use-cases against explicit ports.
func NewModule(deps Dependencies) Module {
	governance := commands.GovernanceUseCase{
		Proposals:      deps.Proposals,
		Votes:          deps.Votes,
		Attestations:   deps.Attestations,
		Registry:       deps.Registry,
		Weights:        deps.Weights,
		Marketplace:    deps.Marketplace,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		AttestorID:     deps.AttestorID,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	proposalQueries := queries.ProposalUseCase{
		Proposals:    deps.Proposals,
		Votes:        deps.Votes,
		Attestations: deps.Attestations,
	}
	registryQueries := queries.RegistryUseCase{
		Registry: deps.Registry,
	}

	handler := httpadapter.Handler{
		Governance: governance,
		Proposals:  proposalQueries,
		Registry:   registryQueries,
		Logger:     deps.Logger,
	}

	return Module{Handler: handler}
}

// NewInMemoryModule wires governance use cases against the in-memory store
// seeded with the genesis registry record. This is the developer/test
// bootstrap path; platform adapters (Postgres/Kafka) are wired in bootstrap.
func NewInMemoryModule(genesis entities.ModelRecord, attestorID string, logger *slog.Logger) Module {
	store := memory.NewStore(genesis)
	module := NewModule(Dependencies{
		Proposals:      store,
		Votes:          store,
		Attestations:   store,
		Registry:       store,
		Weights:        store,
		Marketplace:    store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		AttestorID:     attestorID,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
