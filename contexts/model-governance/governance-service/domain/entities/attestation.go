package entities

import "time"

// Attestation records the boolean outcome of an external proof verification
// for one proposal. At most one attestation is accepted per proposal;
// later submissions are rejected (first-accepted-wins).
type Attestation struct {
	ProposalID string
	Verified   bool
	ProofRef   string
	AttestorID string
	RecordedAt time.Time
}
