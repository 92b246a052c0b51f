package unit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	governanceservice "aegis/contexts/model-governance/governance-service"
	"aegis/contexts/model-governance/governance-service/domain/entities"
	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
	httptransport "aegis/contexts/model-governance/governance-service/transport/http"

	"github.com/google/go-cmp/cmp"
)

const (
	testAttestorID = "proof-service"
	genesisRef     = "sha256:0000000000000000000000000000000000000000000000000000000000000000"
	proposedRef    = "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	proofRef       = "groth16:9f2b4c"
)

func newTestModule() governanceservice.Module {
	return governanceservice.NewInMemoryModule(entities.ModelRecord{
		ArtifactRef:    genesisRef,
		CompressionTag: "fp32",
	}, testAttestorID, nil)
}

func createProposal(
	t *testing.T,
	module governanceservice.Module,
	creatorID string,
	idempotencyKey string,
	req httptransport.CreateProposalRequest,
) httptransport.ProposalDTO {
	t.Helper()
	if req.ArtifactRef == "" {
		req.ArtifactRef = proposedRef
	}
	if req.QuorumThreshold == 0 {
		req.QuorumThreshold = 300
	}
	if req.Deadline == "" {
		req.Deadline = time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	}
	resp, err := module.Handler.CreateProposalHandler(context.Background(), creatorID, req, idempotencyKey)
	if err != nil {
		t.Fatalf("create proposal failed: %v", err)
	}
	return resp.Item
}

// closeVoting backdates the proposal deadline so the tally rule applies.
func closeVoting(t *testing.T, module governanceservice.Module, proposalID string) {
	t.Helper()
	ctx := context.Background()
	proposal, err := module.Store.GetProposal(ctx, proposalID)
	if err != nil {
		t.Fatalf("load proposal for deadline backdate failed: %v", err)
	}
	proposal.Deadline = time.Now().UTC().Add(-time.Minute)
	if err := module.Store.SaveProposal(ctx, proposal); err != nil {
		t.Fatalf("backdate deadline failed: %v", err)
	}
}

func castVote(
	t *testing.T,
	module governanceservice.Module,
	proposalID string,
	voterID string,
	direction string,
) httptransport.CastVoteResponse {
	t.Helper()
	resp, err := module.Handler.CastVoteHandler(
		context.Background(),
		voterID,
		proposalID,
		httptransport.CastVoteRequest{Direction: direction},
		"idem-vote-"+voterID+"-"+proposalID,
	)
	if err != nil {
		t.Fatalf("cast vote for %s failed: %v", voterID, err)
	}
	return resp
}

func TestProposalLifecyclePassAttestExecute(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()
	snapshotAt := time.Now().UTC().Add(-time.Hour)
	module.Store.SetHolding("voter-1", 100, snapshotAt)
	module.Store.SetHolding("voter-2", 150, snapshotAt)
	module.Store.SetHolding("voter-3", 150, snapshotAt)

	proposal := createProposal(t, module, "creator-1", "idem-create-1", httptransport.CreateProposalRequest{
		Description:          "swap classifier weights",
		TargetParam:          "model",
		ProofRef:             proofRef,
		CompressionTag:       "int8",
		RequiresVerification: true,
	})
	if proposal.Status != string(entities.ProposalStatusOpen) {
		t.Fatalf("expected open proposal, got %s", proposal.Status)
	}

	castVote(t, module, proposal.ProposalID, "voter-1", "for")
	castVote(t, module, proposal.ProposalID, "voter-2", "for")
	voteResp := castVote(t, module, proposal.ProposalID, "voter-3", "against")
	if voteResp.Proposal.VotesFor != 250 || voteResp.Proposal.VotesAgainst != 150 {
		t.Fatalf("unexpected tally counters: for=%d against=%d", voteResp.Proposal.VotesFor, voteResp.Proposal.VotesAgainst)
	}

	closeVoting(t, module, proposal.ProposalID)
	tallied, err := module.Handler.TallyProposalHandler(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if !tallied.Changed || tallied.Item.Status != string(entities.ProposalStatusPassed) {
		t.Fatalf("expected passed proposal, got changed=%v status=%s", tallied.Changed, tallied.Item.Status)
	}

	if _, err := module.Handler.SubmitAttestationHandler(ctx, testAttestorID, proposal.ProposalID, httptransport.SubmitAttestationRequest{
		Verified: true,
		ProofRef: proofRef,
	}); err != nil {
		t.Fatalf("submit attestation failed: %v", err)
	}

	executed, err := module.Handler.ExecuteProposalHandler(ctx, proposal.ProposalID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if executed.Registry.Version != 2 {
		t.Fatalf("expected registry version 2, got %d", executed.Registry.Version)
	}
	if executed.Registry.ArtifactRef != proposedRef || executed.Registry.CompressionTag != "int8" {
		t.Fatalf("registry not repointed: %+v", executed.Registry)
	}
	if executed.Item.Status != string(entities.ProposalStatusExecuted) {
		t.Fatalf("expected executed proposal, got %s", executed.Item.Status)
	}

	replay, err := module.Handler.ExecuteProposalHandler(ctx, proposal.ProposalID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if err != nil {
		t.Fatalf("re-execute failed: %v", err)
	}
	if !replay.AlreadyExecuted || replay.Registry.Version != 2 {
		t.Fatalf("expected idempotent re-execute at version 2, got already=%v version=%d", replay.AlreadyExecuted, replay.Registry.Version)
	}
}

func TestExecuteBlockedWithoutAttestation(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()
	module.Store.SetHolding("voter-1", 400, time.Now().UTC().Add(-time.Hour))

	proposal := createProposal(t, module, "creator-1", "idem-create-2", httptransport.CreateProposalRequest{
		Description:          "unverified swap",
		TargetParam:          "model",
		ProofRef:             proofRef,
		RequiresVerification: true,
	})
	castVote(t, module, proposal.ProposalID, "voter-1", "for")
	closeVoting(t, module, proposal.ProposalID)
	if _, err := module.Handler.TallyProposalHandler(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("tally failed: %v", err)
	}

	_, err := module.Handler.ExecuteProposalHandler(ctx, proposal.ProposalID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if !errors.Is(err, domainerrors.ErrVerificationRequired) {
		t.Fatalf("expected verification required error, got %v", err)
	}

	registry, regErr := module.Handler.GetModelHandler(ctx)
	if regErr != nil {
		t.Fatalf("get model failed: %v", regErr)
	}
	if registry.Item.Version != 1 || registry.Item.ArtifactRef != genesisRef {
		t.Fatalf("registry mutated by blocked execute: %+v", registry.Item)
	}

	got, propErr := module.Handler.GetProposalHandler(ctx, proposal.ProposalID)
	if propErr != nil {
		t.Fatalf("get proposal failed: %v", propErr)
	}
	if got.Item.Status != string(entities.ProposalStatusPassed) {
		t.Fatalf("expected proposal to stay passed for retry, got %s", got.Item.Status)
	}

	// The gate clears once the attestation lands; no new vote or tally needed.
	if _, err := module.Handler.SubmitAttestationHandler(ctx, testAttestorID, proposal.ProposalID, httptransport.SubmitAttestationRequest{
		Verified: true,
		ProofRef: proofRef,
	}); err != nil {
		t.Fatalf("submit attestation failed: %v", err)
	}
	executed, execErr := module.Handler.ExecuteProposalHandler(ctx, proposal.ProposalID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if execErr != nil {
		t.Fatalf("execute after attestation failed: %v", execErr)
	}
	if executed.Registry.Version != 2 {
		t.Fatalf("expected version 2 after retry, got %d", executed.Registry.Version)
	}
}

func TestDuplicateVoteRejectedWithoutCounterDrift(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()
	module.Store.SetHolding("voter-1", 120, time.Now().UTC().Add(-time.Hour))

	proposal := createProposal(t, module, "creator-1", "idem-create-3", httptransport.CreateProposalRequest{
		Description: "counter drift check",
		TargetParam: "model",
	})
	first := castVote(t, module, proposal.ProposalID, "voter-1", "for")
	if first.Vote.Weight != 120 {
		t.Fatalf("expected snapshot weight 120, got %d", first.Vote.Weight)
	}

	_, err := module.Handler.CastVoteHandler(ctx, "voter-1", proposal.ProposalID, httptransport.CastVoteRequest{
		Direction: "against",
	}, "idem-vote-different-key")
	if !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote error, got %v", err)
	}

	got, propErr := module.Handler.GetProposalHandler(ctx, proposal.ProposalID)
	if propErr != nil {
		t.Fatalf("get proposal failed: %v", propErr)
	}
	if got.Item.VotesFor != 120 || got.Item.VotesAgainst != 0 {
		t.Fatalf("counters drifted: for=%d against=%d", got.Item.VotesFor, got.Item.VotesAgainst)
	}

	votes, votesErr := module.Handler.ListVotesHandler(ctx, proposal.ProposalID)
	if votesErr != nil {
		t.Fatalf("list votes failed: %v", votesErr)
	}
	want := []httptransport.VoteDTO{{
		ProposalID: proposal.ProposalID,
		VoterID:    "voter-1",
		Direction:  "for",
		Weight:     120,
		CastAt:     first.Vote.CastAt,
	}}
	if diff := cmp.Diff(want, votes.Items); diff != "" {
		t.Fatalf("vote ledger mismatch (-want +got):\n%s", diff)
	}
}

func TestTieWithQuorumIsRejected(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()
	snapshotAt := time.Now().UTC().Add(-time.Hour)
	module.Store.SetHolding("voter-1", 300, snapshotAt)
	module.Store.SetHolding("voter-2", 300, snapshotAt)

	proposal := createProposal(t, module, "creator-1", "idem-create-4", httptransport.CreateProposalRequest{
		Description:     "tie break check",
		TargetParam:     "model",
		QuorumThreshold: 400,
	})
	castVote(t, module, proposal.ProposalID, "voter-1", "for")
	castVote(t, module, proposal.ProposalID, "voter-2", "against")

	closeVoting(t, module, proposal.ProposalID)
	tallied, err := module.Handler.TallyProposalHandler(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tallied.Item.Status != string(entities.ProposalStatusRejected) {
		t.Fatalf("expected rejected on tie, got %s", tallied.Item.Status)
	}

	_, execErr := module.Handler.ExecuteProposalHandler(ctx, proposal.ProposalID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if !errors.Is(execErr, domainerrors.ErrProposalNotPassed) {
		t.Fatalf("expected not passed error, got %v", execErr)
	}

	// Re-tally of a decided proposal is a no-op reporting the recorded outcome.
	again, err := module.Handler.TallyProposalHandler(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("re-tally failed: %v", err)
	}
	if again.Changed || again.Item.Status != string(entities.ProposalStatusRejected) {
		t.Fatalf("expected unchanged rejected outcome, got changed=%v status=%s", again.Changed, again.Item.Status)
	}
}

func TestStaleRegistryVersionLosesRace(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()
	module.Store.SetHolding("voter-1", 500, time.Now().UTC().Add(-time.Hour))

	passProposal := func(key string, artifactHex string) string {
		proposal := createProposal(t, module, "creator-1", key, httptransport.CreateProposalRequest{
			Description: "racing update " + key,
			TargetParam: "model",
			ArtifactRef: "sha256:" + strings.Repeat(artifactHex, 64),
		})
		castVote(t, module, proposal.ProposalID, "voter-1", "for")
		closeVoting(t, module, proposal.ProposalID)
		if _, err := module.Handler.TallyProposalHandler(ctx, proposal.ProposalID); err != nil {
			t.Fatalf("tally %s failed: %v", key, err)
		}
		return proposal.ProposalID
	}
	firstID := passProposal("idem-race-a", "b")
	secondID := passProposal("idem-race-b", "c")

	winner, err := module.Handler.ExecuteProposalHandler(ctx, firstID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if err != nil {
		t.Fatalf("first execute failed: %v", err)
	}
	if winner.Registry.Version != 2 {
		t.Fatalf("expected version 2 after winner, got %d", winner.Registry.Version)
	}

	_, staleErr := module.Handler.ExecuteProposalHandler(ctx, secondID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if !errors.Is(staleErr, domainerrors.ErrRegistryVersionMismatch) {
		t.Fatalf("expected version mismatch for stale execute, got %v", staleErr)
	}

	refreshed, err := module.Handler.ExecuteProposalHandler(ctx, secondID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 2,
	})
	if err != nil {
		t.Fatalf("refreshed execute failed: %v", err)
	}
	if refreshed.Registry.Version != 3 {
		t.Fatalf("expected version 3 after refreshed execute, got %d", refreshed.Registry.Version)
	}
}

func TestVoteWeightSnapshotAtProposalCreation(t *testing.T) {
	module := newTestModule()

	proposal := createProposal(t, module, "creator-1", "idem-create-5", httptransport.CreateProposalRequest{
		Description: "snapshot policy check",
		TargetParam: "model",
	})
	// Acquired after proposal creation, so the balance must not count.
	module.Store.SetHolding("voter-late", 9000, time.Now().UTC())

	resp := castVote(t, module, proposal.ProposalID, "voter-late", "for")
	if resp.Vote.Weight != 1 {
		t.Fatalf("expected fallback weight 1 for post-creation holding, got %d", resp.Vote.Weight)
	}
}

func TestVotingClosedAfterDeadline(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	proposal := createProposal(t, module, "creator-1", "idem-create-6", httptransport.CreateProposalRequest{
		Description: "deadline check",
		TargetParam: "model",
	})

	_, earlyTally := module.Handler.TallyProposalHandler(ctx, proposal.ProposalID)
	if !errors.Is(earlyTally, domainerrors.ErrTallyNotReady) {
		t.Fatalf("expected tally not ready before deadline, got %v", earlyTally)
	}

	closeVoting(t, module, proposal.ProposalID)
	_, lateVote := module.Handler.CastVoteHandler(ctx, "voter-1", proposal.ProposalID, httptransport.CastVoteRequest{
		Direction: "for",
	}, "idem-late-vote")
	if !errors.Is(lateVote, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected voting closed error, got %v", lateVote)
	}
}

func TestCreateProposalValidationAndReplay(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()
	deadline := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)

	cases := []struct {
		name string
		req  httptransport.CreateProposalRequest
		want error
	}{
		{
			name: "malformed artifact ref",
			req: httptransport.CreateProposalRequest{
				Description:     "bad ref",
				TargetParam:     "model",
				ArtifactRef:     "sha256:zz",
				QuorumThreshold: 10,
				Deadline:        deadline,
			},
			want: domainerrors.ErrInvalidArtifactRef,
		},
		{
			name: "unsupported proof scheme",
			req: httptransport.CreateProposalRequest{
				Description:          "bad scheme",
				TargetParam:          "model",
				ArtifactRef:          proposedRef,
				ProofRef:             "plonk:abc",
				QuorumThreshold:      10,
				Deadline:             deadline,
				RequiresVerification: true,
			},
			want: domainerrors.ErrInvalidProofRef,
		},
		{
			name: "non-positive quorum",
			req: httptransport.CreateProposalRequest{
				Description: "bad quorum",
				TargetParam: "model",
				ArtifactRef: proposedRef,
				Deadline:    deadline,
			},
			want: domainerrors.ErrInvalidProposalInput,
		},
		{
			name: "past deadline",
			req: httptransport.CreateProposalRequest{
				Description:     "bad deadline",
				TargetParam:     "model",
				ArtifactRef:     proposedRef,
				QuorumThreshold: 10,
				Deadline:        time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
			},
			want: domainerrors.ErrInvalidProposalInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := module.Handler.CreateProposalHandler(ctx, "creator-1", tc.req, "idem-"+tc.name)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	first := createProposal(t, module, "creator-1", "idem-replay", httptransport.CreateProposalRequest{
		Description: "replay check",
		TargetParam: "model",
		Deadline:    deadline,
	})
	second, err := module.Handler.CreateProposalHandler(ctx, "creator-1", httptransport.CreateProposalRequest{
		Description:     "replay check",
		TargetParam:     "model",
		ArtifactRef:     proposedRef,
		QuorumThreshold: 300,
		Deadline:        deadline,
	}, "idem-replay")
	if err != nil {
		t.Fatalf("replay create failed: %v", err)
	}
	if !second.Replayed || second.Item.ProposalID != first.ProposalID {
		t.Fatalf("expected replayed proposal %s, got %+v", first.ProposalID, second)
	}

	_, conflictErr := module.Handler.CreateProposalHandler(ctx, "creator-1", httptransport.CreateProposalRequest{
		Description:     "different payload",
		TargetParam:     "model",
		ArtifactRef:     proposedRef,
		QuorumThreshold: 300,
		Deadline:        deadline,
	}, "idem-replay")
	if !errors.Is(conflictErr, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", conflictErr)
	}
}

func TestAttestationAuthorityAndFirstWins(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	proposal := createProposal(t, module, "creator-1", "idem-create-7", httptransport.CreateProposalRequest{
		Description:          "attestation rules",
		TargetParam:          "model",
		ProofRef:             proofRef,
		RequiresVerification: true,
	})

	_, rogueErr := module.Handler.SubmitAttestationHandler(ctx, "rogue-attestor", proposal.ProposalID, httptransport.SubmitAttestationRequest{
		Verified: true,
		ProofRef: proofRef,
	})
	if !errors.Is(rogueErr, domainerrors.ErrNotAttestor) {
		t.Fatalf("expected not attestor error, got %v", rogueErr)
	}

	_, mismatchErr := module.Handler.SubmitAttestationHandler(ctx, testAttestorID, proposal.ProposalID, httptransport.SubmitAttestationRequest{
		Verified: true,
		ProofRef: "groth16:deadbeef",
	})
	if !errors.Is(mismatchErr, domainerrors.ErrProofRefMismatch) {
		t.Fatalf("expected proof ref mismatch, got %v", mismatchErr)
	}

	first, err := module.Handler.SubmitAttestationHandler(ctx, testAttestorID, proposal.ProposalID, httptransport.SubmitAttestationRequest{
		Verified: false,
		ProofRef: proofRef,
	})
	if err != nil {
		t.Fatalf("submit attestation failed: %v", err)
	}
	if first.Verified {
		t.Fatalf("expected stored negative verdict")
	}

	_, dupErr := module.Handler.SubmitAttestationHandler(ctx, testAttestorID, proposal.ProposalID, httptransport.SubmitAttestationRequest{
		Verified: true,
		ProofRef: proofRef,
	})
	if !errors.Is(dupErr, domainerrors.ErrDuplicateAttestation) {
		t.Fatalf("expected duplicate attestation error, got %v", dupErr)
	}

	stored, getErr := module.Handler.GetAttestationHandler(ctx, proposal.ProposalID)
	if getErr != nil {
		t.Fatalf("get attestation failed: %v", getErr)
	}
	if stored.Verified {
		t.Fatalf("first-wins violated: negative verdict was overwritten")
	}
}

func TestCancelProposalRules(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	proposal := createProposal(t, module, "creator-1", "idem-create-8", httptransport.CreateProposalRequest{
		Description: "cancellation rules",
		TargetParam: "model",
	})

	_, strangerErr := module.Handler.CancelProposalHandler(ctx, "someone-else", proposal.ProposalID)
	if !errors.Is(strangerErr, domainerrors.ErrNotCreator) {
		t.Fatalf("expected not creator error, got %v", strangerErr)
	}

	castVote(t, module, proposal.ProposalID, "voter-1", "for")
	_, votedErr := module.Handler.CancelProposalHandler(ctx, "creator-1", proposal.ProposalID)
	if !errors.Is(votedErr, domainerrors.ErrProposalHasVotes) {
		t.Fatalf("expected proposal has votes error, got %v", votedErr)
	}

	fresh := createProposal(t, module, "creator-1", "idem-create-9", httptransport.CreateProposalRequest{
		Description: "cancellable",
		TargetParam: "model",
	})
	cancelled, err := module.Handler.CancelProposalHandler(ctx, "creator-1", fresh.ProposalID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Item.Status != string(entities.ProposalStatusCancelled) {
		t.Fatalf("expected cancelled status, got %s", cancelled.Item.Status)
	}

	_, lateVoteErr := module.Handler.CastVoteHandler(ctx, "voter-1", fresh.ProposalID, httptransport.CastVoteRequest{
		Direction: "for",
	}, "idem-vote-after-cancel")
	if !errors.Is(lateVoteErr, domainerrors.ErrProposalNotOpen) {
		t.Fatalf("expected proposal not open after cancel, got %v", lateVoteErr)
	}
}

func TestTrainingProposalDispatchesJobOnExecute(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()
	module.Store.SetHolding("voter-1", 500, time.Now().UTC().Add(-time.Hour))

	proposal := createProposal(t, module, "creator-1", "idem-create-10", httptransport.CreateProposalRequest{
		Description: "epochs=3;dataset=v2",
		TargetParam: "train",
	})
	castVote(t, module, proposal.ProposalID, "voter-1", "for")
	closeVoting(t, module, proposal.ProposalID)
	if _, err := module.Handler.TallyProposalHandler(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("tally failed: %v", err)
	}

	executed, err := module.Handler.ExecuteProposalHandler(ctx, proposal.ProposalID, httptransport.ExecuteProposalRequest{
		ExpectedRegistryVersion: 1,
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if executed.Item.TrainingJobID == "" {
		t.Fatalf("expected training job id on executed training proposal")
	}

	requests := module.Store.TrainingJobRequests()
	if len(requests) != 1 {
		t.Fatalf("expected one training job request, got %d", len(requests))
	}
	if requests[0].ProposalID != proposal.ProposalID || requests[0].TrainingParams != "epochs=3;dataset=v2" {
		t.Fatalf("unexpected training job request: %+v", requests[0])
	}
}
