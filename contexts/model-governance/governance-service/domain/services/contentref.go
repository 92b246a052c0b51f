package services

import (
	"encoding/hex"
	"strings"

	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
)

// Artifact references are content addresses of the form "<scheme>:<hex>".
// The core never fetches artifact bytes; it only validates that a reference
// is a well-formed address before storing it.
var digestHexLengths = map[string]int{
	"sha256": 64,
	"blake3": 64,
}

// ValidateArtifactRef rejects empty or malformed content addresses.
func ValidateArtifactRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domainerrors.ErrInvalidArtifactRef
	}
	scheme, digest, ok := strings.Cut(ref, ":")
	if !ok {
		return domainerrors.ErrInvalidArtifactRef
	}
	wantLen, known := digestHexLengths[strings.ToLower(scheme)]
	if !known {
		return domainerrors.ErrInvalidArtifactRef
	}
	if len(digest) != wantLen {
		return domainerrors.ErrInvalidArtifactRef
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return domainerrors.ErrInvalidArtifactRef
	}
	return nil
}
