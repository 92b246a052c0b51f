package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "aegis/contexts/model-governance/governance-service/application"
	"aegis/contexts/model-governance/governance-service/application/commands"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/ports"
)

const (
	proofVerifiedTopic = "proof.verified"
	defaultProofCG     = "governance-proof-cg"
)

// ProofResultConsumer bridges the asynchronous proof computation service
// into stored attestations: it consumes verification outcomes from the bus
// and records them through the attestation gate. Duplicate deliveries are
// absorbed by event dedup plus the first-wins attestation rule.
type ProofResultConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Governance    commands.GovernanceUseCase
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

type proofVerifiedPayload struct {
	ProposalID string `json:"proposal_id"`
	Verified   bool   `json:"verified"`
	ProofRef   string `json:"proof_ref"`
	AttestorID string `json:"attestor_id"`
}

// Start subscribes the consumer to proof verification outcomes.
func (c ProofResultConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultProofCG
	}
	logger.Info("proof result consumer starting",
		"event", "governance_proof_consumer_starting",
		"module", "model-governance/governance-service",
		"layer", "worker",
		"topic", proofVerifiedTopic,
		"consumer_group", group,
	)
	return c.Subscriber.Subscribe(ctx, proofVerifiedTopic, group, c.handleProofVerified)
}

func (c ProofResultConsumer) handleProofVerified(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	if c.Dedup != nil {
		sum := sha256.Sum256(event.Data)
		ttl := c.DedupTTL
		if ttl <= 0 {
			ttl = 7 * 24 * time.Hour
		}
		seen, err := c.Dedup.ReserveEvent(ctx, event.EventID, hex.EncodeToString(sum[:]), time.Now().UTC().Add(ttl))
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}

	var payload proofVerifiedPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("proof result decode failed",
			"event", "governance_proof_decode_failed",
			"module", "model-governance/governance-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	_, err := c.Governance.SubmitAttestation(ctx, commands.SubmitAttestationCommand{
		ProposalID: payload.ProposalID,
		AttestorID: payload.AttestorID,
		Verified:   payload.Verified,
		ProofRef:   payload.ProofRef,
	})
	if err != nil {
		// Redelivered results after the first accepted attestation are
		// expected and benign.
		if errors.Is(err, domainerrors.ErrDuplicateAttestation) {
			logger.Info("proof result ignored; attestation already recorded",
				"event", "governance_proof_duplicate_ignored",
				"module", "model-governance/governance-service",
				"layer", "worker",
				"proposal_id", payload.ProposalID,
				"event_id", event.EventID,
			)
			return nil
		}
		logger.Error("proof result attestation failed",
			"event", "governance_proof_attestation_failed",
			"module", "model-governance/governance-service",
			"layer", "worker",
			"proposal_id", payload.ProposalID,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
