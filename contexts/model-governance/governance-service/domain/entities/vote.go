package entities

import "time"

type VoteDirection string

const (
	VoteDirectionFor     VoteDirection = "for"
	VoteDirectionAgainst VoteDirection = "against"
)

// Vote is one weighted ballot. (ProposalID, VoterID) is unique; a second
// cast by the same voter is rejected, never merged or replaced.
type Vote struct {
	ProposalID string
	VoterID    string
	Direction  VoteDirection
	Weight     int64
	CastAt     time.Time
}
