package entities

import (
	"testing"
	"time"
)

func TestTallyOutcome(t *testing.T) {
	cases := []struct {
		name         string
		votesFor     int64
		votesAgainst int64
		quorum       int64
		want         ProposalStatus
	}{
		{"majority with quorum passes", 250, 150, 300, ProposalStatusPassed},
		{"majority below quorum rejects", 60, 20, 100, ProposalStatusRejected},
		{"tie at quorum rejects", 300, 300, 400, ProposalStatusRejected},
		{"minority rejects", 100, 200, 100, ProposalStatusRejected},
		{"exact quorum with majority passes", 51, 49, 100, ProposalStatusPassed},
		{"no votes rejects", 0, 0, 1, ProposalStatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proposal := Proposal{
				VotesFor:        tc.votesFor,
				VotesAgainst:    tc.votesAgainst,
				QuorumThreshold: tc.quorum,
			}
			if got := proposal.TallyOutcome(); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestVotingClosedIsInclusiveAtDeadline(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	proposal := Proposal{Deadline: deadline}

	if proposal.VotingClosed(deadline.Add(-time.Second)) {
		t.Fatalf("voting must stay open before the deadline")
	}
	if !proposal.VotingClosed(deadline) {
		t.Fatalf("voting must close exactly at the deadline")
	}
	if !proposal.VotingClosed(deadline.Add(time.Second)) {
		t.Fatalf("voting must stay closed after the deadline")
	}
}

func TestIsTrainingAction(t *testing.T) {
	if !(Proposal{TargetParam: "train"}).IsTrainingAction() {
		t.Fatalf("expected train target to be a training action")
	}
	if !(Proposal{TargetParam: "TRAIN"}).IsTrainingAction() {
		t.Fatalf("expected case-insensitive match")
	}
	if (Proposal{TargetParam: "model"}).IsTrainingAction() {
		t.Fatalf("model target is not a training action")
	}
}
