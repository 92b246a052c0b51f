package entities

import (
	"strings"
	"time"
)

type ProposalStatus string

const (
	ProposalStatusOpen      ProposalStatus = "open"
	ProposalStatusPassed    ProposalStatus = "passed"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusExecuted  ProposalStatus = "executed"
	ProposalStatusCancelled ProposalStatus = "cancelled"
)

// Proposal is a single governance request to repoint the model registry.
// Status transitions are one-way: open -> passed/rejected/cancelled, and
// passed -> executed. A proposal is never reopened.
type Proposal struct {
	ProposalID           string
	CreatorID            string
	Description          string
	TargetParam          string
	ProposedArtifactRef  string
	ProposedProofRef     string
	ProposedCompression  string
	QuorumThreshold      int64
	Deadline             time.Time
	RequiresVerification bool
	VotesFor             int64
	VotesAgainst         int64
	Status               ProposalStatus
	TrainingJobID        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	TalliedAt            *time.Time
	ExecutedAt           *time.Time
}

// VotingClosed reports whether the vote window has ended.
func (p Proposal) VotingClosed(now time.Time) bool {
	return !now.Before(p.Deadline)
}

// TallyOutcome applies the deterministic tally rule: passed iff strictly
// more weight for than against and combined weight meets quorum. Ties
// always reject.
func (p Proposal) TallyOutcome() ProposalStatus {
	if p.VotesFor > p.VotesAgainst && p.VotesFor+p.VotesAgainst >= p.QuorumThreshold {
		return ProposalStatusPassed
	}
	return ProposalStatusRejected
}

// IsTrainingAction reports whether executing this proposal should request a
// training job from the compute marketplace.
func (p Proposal) IsTrainingAction() bool {
	return strings.EqualFold(strings.TrimSpace(p.TargetParam), "train")
}

func (p Proposal) HasVotes() bool {
	return p.VotesFor > 0 || p.VotesAgainst > 0
}
