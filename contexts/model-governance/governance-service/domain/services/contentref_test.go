package services

import (
	"errors"
	"strings"
	"testing"

	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
)

func TestValidateArtifactRef(t *testing.T) {
	valid := []string{
		"sha256:" + strings.Repeat("a", 64),
		"SHA256:" + strings.Repeat("0", 64),
		"blake3:" + strings.Repeat("f", 64),
	}
	for _, ref := range valid {
		if err := ValidateArtifactRef(ref); err != nil {
			t.Fatalf("expected %q to validate, got %v", ref, err)
		}
	}

	invalid := []string{
		"",
		"   ",
		"sha256",
		"sha256:",
		"sha256:" + strings.Repeat("a", 63),
		"sha256:" + strings.Repeat("a", 65),
		"sha256:" + strings.Repeat("z", 64),
		"md5:" + strings.Repeat("a", 64),
		strings.Repeat("a", 64),
	}
	for _, ref := range invalid {
		if err := ValidateArtifactRef(ref); !errors.Is(err, domainerrors.ErrInvalidArtifactRef) {
			t.Fatalf("expected invalid artifact ref error for %q, got %v", ref, err)
		}
	}
}
