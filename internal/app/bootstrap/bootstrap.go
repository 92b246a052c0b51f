package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	governanceservice "aegis/contexts/model-governance/governance-service"
	marketplaceadapter "aegis/contexts/model-governance/governance-service/adapters/marketplace"
	postgresadapter "aegis/contexts/model-governance/governance-service/adapters/postgres"
	"aegis/contexts/model-governance/governance-service/application/commands"
	workerapp "aegis/contexts/model-governance/governance-service/application/workers"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	"aegis/contexts/model-governance/governance-service/ports"
	"aegis/internal/platform/config"
	"aegis/internal/platform/db"
	"aegis/internal/platform/httpserver"
	"aegis/internal/platform/messaging"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	outboxRelay   workerapp.OutboxRelay
	proofConsumer workerapp.ProofResultConsumer
	jobRetry      workerapp.JobDispatchRetry
	runProofs     bool
	runJobRetry   bool
	pollInterval  time.Duration
	logger        *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.EnsureRegistry(context.Background(), entities.ModelRecord{
		ArtifactRef:    cfg.Genesis.ArtifactRef,
		ProofRef:       cfg.Genesis.ProofRef,
		CompressionTag: cfg.Genesis.CompressionTag,
	}); err != nil {
		_ = pg.Close()
		return nil, err
	}

	module := governanceservice.NewModule(governanceservice.Dependencies{
		Proposals:      repo,
		Votes:          repo,
		Attestations:   repo,
		Registry:       repo,
		Weights:        repo,
		Marketplace:    buildMarketplace(cfg, logger),
		Idempotency:    repo,
		Outbox:         repo,
		Clock:          postgresadapter.SystemClock{},
		IDGenerator:    postgresadapter.UUIDGenerator{},
		AttestorID:     cfg.AttestorID,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	marketplace := buildMarketplace(cfg, logger)
	governance := commands.GovernanceUseCase{
		Proposals:      repo,
		Votes:          repo,
		Attestations:   repo,
		Registry:       repo,
		Weights:        repo,
		Marketplace:    marketplace,
		Idempotency:    repo,
		Outbox:         repo,
		Clock:          postgresadapter.SystemClock{},
		IDGen:          postgresadapter.UUIDGenerator{},
		AttestorID:     cfg.AttestorID,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	}

	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		proofConsumer: workerapp.ProofResultConsumer{
			Subscriber:    kafka,
			Dedup:         repo,
			Governance:    governance,
			ConsumerGroup: "governance-proof-cg",
			DedupTTL:      cfg.IdempotencyTTL,
			Logger:        logger,
		},
		jobRetry: workerapp.JobDispatchRetry{
			Proposals:   repo,
			Marketplace: marketplace,
			Clock:       postgresadapter.SystemClock{},
			BatchSize:   50,
			Logger:      logger,
		},
		runProofs:    cfg.EnableProofConsumer,
		runJobRetry:  cfg.EnableJobRetry && marketplace != nil,
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}, nil
}

func buildMarketplace(cfg config.Config, logger *slog.Logger) ports.ComputeMarketplace {
	if strings.TrimSpace(cfg.MarketplaceURL) == "" {
		return nil
	}
	return marketplaceadapter.NewClient(cfg.MarketplaceURL, logger)
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	if w.runProofs {
		if err := w.proofConsumer.Start(groupCtx); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"proof_consumer", w.runProofs,
		"job_retry", w.runJobRetry,
	)

	group.Go(func() error {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			if err := w.outboxRelay.RunOnce(groupCtx); err != nil {
				return err
			}
			if w.runJobRetry {
				if err := w.jobRetry.RunOnce(groupCtx); err != nil {
					return err
				}
			}
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	return group.Wait()
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
