package entities

import "time"

// ModelRecord is the registry singleton: the current artifact pointer, its
// proof reference and a monotonic version counter. Version starts at 1 and
// increases by exactly 1 per executed proposal; the record is never deleted.
type ModelRecord struct {
	ArtifactRef    string
	ProofRef       string
	CompressionTag string
	Version        uint64
	UpdatedAt      time.Time
}
