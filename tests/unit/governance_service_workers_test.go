package unit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"aegis/contexts/model-governance/governance-service/application/commands"
	"aegis/contexts/model-governance/governance-service/application/workers"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	httptransport "aegis/contexts/model-governance/governance-service/transport/http"
	contractsv1 "aegis/contracts/gen/events/v1"

	"aegis/contexts/model-governance/governance-service/ports"
)

type fakePublisher struct {
	published []ports.EventEnvelope
	fail      bool
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event ports.EventEnvelope) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

type fakeSubscriber struct {
	topic   string
	group   string
	handler func(context.Context, ports.EventEnvelope) error
}

func (s *fakeSubscriber) Subscribe(
	_ context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	s.topic = topic
	s.group = consumerGroup
	s.handler = handler
	return nil
}

func TestOutboxRelayPublishesPendingEvents(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	createProposal(t, module, "creator-1", "idem-relay-1", httptransport.CreateProposalRequest{
		Description: "relay check",
		TargetParam: "model",
	})

	publisher := &fakePublisher{}
	relay := workers.OutboxRelay{
		Outbox:    module.Store,
		Publisher: publisher,
		Clock:     module.Store,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.published))
	}
	if publisher.published[0].EventType != "proposal.created" {
		t.Fatalf("unexpected event type %s", publisher.published[0].EventType)
	}

	// Published rows stay published; a second cycle finds nothing pending.
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("second relay run failed: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected no republish, got %d events", len(publisher.published))
	}
}

func TestOutboxRelayKeepsRowsOnPublishFailure(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	createProposal(t, module, "creator-1", "idem-relay-2", httptransport.CreateProposalRequest{
		Description: "relay failure check",
		TargetParam: "model",
	})

	broken := &fakePublisher{fail: true}
	relay := workers.OutboxRelay{Outbox: module.Store, Publisher: broken, Clock: module.Store}
	if err := relay.RunOnce(ctx); err == nil {
		t.Fatalf("expected relay error on broker failure")
	}

	recovered := &fakePublisher{}
	relay.Publisher = recovered
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("recovered relay run failed: %v", err)
	}
	if len(recovered.published) != 1 {
		t.Fatalf("expected row retained for retry, got %d events", len(recovered.published))
	}
}

func TestProofResultConsumerRecordsAttestation(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	proposal := createProposal(t, module, "creator-1", "idem-proof-1", httptransport.CreateProposalRequest{
		Description:          "proof bridge check",
		TargetParam:          "model",
		ProofRef:             proofRef,
		RequiresVerification: true,
	})

	governance := commands.GovernanceUseCase{
		Proposals:    module.Store,
		Votes:        module.Store,
		Attestations: module.Store,
		Registry:     module.Store,
		Idempotency:  module.Store,
		Outbox:       module.Store,
		Clock:        module.Store,
		IDGen:        module.Store,
		AttestorID:   testAttestorID,
	}
	bus := &fakeSubscriber{}
	consumer := workers.ProofResultConsumer{
		Subscriber: bus,
		Dedup:      module.Store,
		Governance: governance,
		DedupTTL:   time.Hour,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start failed: %v", err)
	}
	if bus.topic != "proof.verified" || bus.group == "" {
		t.Fatalf("unexpected subscription: topic=%s group=%s", bus.topic, bus.group)
	}

	payload, err := json.Marshal(map[string]any{
		"proposal_id": proposal.ProposalID,
		"verified":    true,
		"proof_ref":   proofRef,
		"attestor_id": testAttestorID,
	})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	event := contractsv1.Envelope{
		EventID:       "proof-event-1",
		EventType:     "proof.verified",
		OccurredAt:    time.Now().UTC(),
		SourceService: "proof-service",
		SchemaVersion: 1,
		PartitionKey:  proposal.ProposalID,
		Data:          payload,
	}
	if err := bus.handler(ctx, event); err != nil {
		t.Fatalf("handle proof event failed: %v", err)
	}

	stored, getErr := module.Handler.GetAttestationHandler(ctx, proposal.ProposalID)
	if getErr != nil {
		t.Fatalf("get attestation failed: %v", getErr)
	}
	if !stored.Verified || stored.AttestorID != testAttestorID {
		t.Fatalf("unexpected attestation: %+v", stored)
	}

	// Same event id is absorbed by dedup.
	if err := bus.handler(ctx, event); err != nil {
		t.Fatalf("redelivered event should be absorbed, got %v", err)
	}
	// A distinct event id for an already attested proposal is also benign.
	event.EventID = "proof-event-2"
	if err := bus.handler(ctx, event); err != nil {
		t.Fatalf("duplicate attestation replay should be absorbed, got %v", err)
	}
}

func TestJobDispatchRetryPicksUpFailedDispatch(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()
	module.Store.SetHolding("voter-1", 500, time.Now().UTC().Add(-time.Hour))

	proposal := createProposal(t, module, "creator-1", "idem-retry-1", httptransport.CreateProposalRequest{
		Description: "epochs=5",
		TargetParam: "train",
	})
	castVote(t, module, proposal.ProposalID, "voter-1", "for")
	closeVoting(t, module, proposal.ProposalID)
	if _, err := module.Handler.TallyProposalHandler(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("tally failed: %v", err)
	}

	module.Store.FailTrainingDispatch(errors.New("marketplace down"))
	executed, err := module.Handler.ExecuteProposalHandler(ctx, proposal.ProposalID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if executed.Item.TrainingJobID != "" {
		t.Fatalf("expected no job id while marketplace is down")
	}
	if executed.Item.Status != string(entities.ProposalStatusExecuted) {
		t.Fatalf("dispatch failure must not block execution, got %s", executed.Item.Status)
	}

	module.Store.FailTrainingDispatch(nil)
	retry := workers.JobDispatchRetry{
		Proposals:   module.Store,
		Marketplace: module.Store,
		Clock:       module.Store,
	}
	if err := retry.RunOnce(ctx); err != nil {
		t.Fatalf("retry run failed: %v", err)
	}

	got, propErr := module.Handler.GetProposalHandler(ctx, proposal.ProposalID)
	if propErr != nil {
		t.Fatalf("get proposal failed: %v", propErr)
	}
	if got.Item.TrainingJobID == "" {
		t.Fatalf("expected job id after retry")
	}

	// A further cycle finds nothing pending and must not re-dispatch.
	before := len(module.Store.TrainingJobRequests())
	if err := retry.RunOnce(ctx); err != nil {
		t.Fatalf("second retry run failed: %v", err)
	}
	if len(module.Store.TrainingJobRequests()) != before {
		t.Fatalf("retry re-dispatched an already dispatched job")
	}
}
