package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	"aegis/contexts/model-governance/governance-service/ports"
)

func seedPassedProposal(t *testing.T, store *Store, proposalID string) {
	t.Helper()
	now := time.Now().UTC()
	err := store.SaveProposal(context.Background(), entities.Proposal{
		ProposalID:          proposalID,
		CreatorID:           "creator-1",
		TargetParam:         "model",
		ProposedArtifactRef: "sha256:" + strings.Repeat("a", 64),
		QuorumThreshold:     1,
		Deadline:            now.Add(-time.Minute),
		VotesFor:            10,
		Status:              entities.ProposalStatusPassed,
		CreatedAt:           now.Add(-time.Hour),
		UpdatedAt:           now,
	})
	if err != nil {
		t.Fatalf("seed proposal failed: %v", err)
	}
}

func TestApplyExecutionConcurrentSingleWinner(t *testing.T) {
	store := NewStore(entities.ModelRecord{ArtifactRef: "sha256:" + strings.Repeat("0", 64)})
	ctx := context.Background()

	const racers = 8
	for i := 0; i < racers; i++ {
		seedPassedProposal(t, store, fmt.Sprintf("proposal-%d", i))
	}

	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := store.ApplyExecution(ctx, ports.ExecutionUpdate{
				ProposalID:      fmt.Sprintf("proposal-%d", slot),
				ExpectedVersion: 1,
				ArtifactRef:     "sha256:" + strings.Repeat("b", 64),
				ExecutedAt:      time.Now().UTC(),
			})
			results[slot] = err
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, domainerrors.ErrRegistryVersionMismatch):
		default:
			t.Fatalf("unexpected execution error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	registry, err := store.GetRegistry(ctx)
	if err != nil {
		t.Fatalf("get registry failed: %v", err)
	}
	if registry.Version != 2 {
		t.Fatalf("expected single version bump to 2, got %d", registry.Version)
	}
}

func TestCastVoteConcurrentDuplicateRejected(t *testing.T) {
	store := NewStore(entities.ModelRecord{ArtifactRef: "sha256:" + strings.Repeat("0", 64)})
	ctx := context.Background()

	now := time.Now().UTC()
	if err := store.SaveProposal(ctx, entities.Proposal{
		ProposalID:      "proposal-1",
		CreatorID:       "creator-1",
		TargetParam:     "model",
		QuorumThreshold: 100,
		Deadline:        now.Add(time.Hour),
		Status:          entities.ProposalStatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}); err != nil {
		t.Fatalf("seed proposal failed: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := store.CastVote(ctx, entities.Vote{
				ProposalID: "proposal-1",
				VoterID:    "voter-1",
				Direction:  entities.VoteDirectionFor,
				Weight:     25,
				CastAt:     time.Now().UTC(),
			})
			results[slot] = err
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domainerrors.ErrDuplicateVote):
		default:
			t.Fatalf("unexpected cast error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted vote, got %d", accepted)
	}

	proposal, err := store.GetProposal(ctx, "proposal-1")
	if err != nil {
		t.Fatalf("get proposal failed: %v", err)
	}
	if proposal.VotesFor != 25 || proposal.VotesAgainst != 0 {
		t.Fatalf("counter drift under races: for=%d against=%d", proposal.VotesFor, proposal.VotesAgainst)
	}
}

func TestWeightAtResolvesLatestSnapshotBeforeInstant(t *testing.T) {
	store := NewStore(entities.ModelRecord{ArtifactRef: "sha256:" + strings.Repeat("0", 64)})
	ctx := context.Background()

	base := time.Now().UTC().Add(-24 * time.Hour)
	store.SetHolding("voter-1", 50, base)
	store.SetHolding("voter-1", 75, base.Add(2*time.Hour))
	store.SetHolding("voter-1", 300, base.Add(48*time.Hour))

	weight, found, err := store.WeightAt(ctx, "voter-1", base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("weight lookup failed: %v", err)
	}
	if !found || weight != 75 {
		t.Fatalf("expected snapshot weight 75, got found=%v weight=%d", found, weight)
	}

	_, found, err = store.WeightAt(ctx, "voter-1", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("weight lookup failed: %v", err)
	}
	if found {
		t.Fatalf("expected no snapshot before first holding")
	}

	_, found, err = store.WeightAt(ctx, "voter-unknown", time.Now().UTC())
	if err != nil {
		t.Fatalf("weight lookup failed: %v", err)
	}
	if found {
		t.Fatalf("expected no snapshot for unknown voter")
	}
}
