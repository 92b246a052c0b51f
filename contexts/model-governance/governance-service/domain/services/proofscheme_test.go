package services

import (
	"errors"
	"testing"

	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
)

func TestParseProofRef(t *testing.T) {
	cases := []struct {
		ref     string
		scheme  ProofScheme
		payload string
	}{
		{"groth16:9f2b4c", ProofSchemeGroth16, "9f2b4c"},
		{"GROTH16:9f2b4c", ProofSchemeGroth16, "9f2b4c"},
		{"nova:chain-head-77", ProofSchemeNova, "chain-head-77"},
	}
	for _, tc := range cases {
		scheme, payload, err := ParseProofRef(tc.ref)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.ref, err)
		}
		if scheme != tc.scheme || payload != tc.payload {
			t.Fatalf("parse %q: got scheme=%s payload=%s", tc.ref, scheme, payload)
		}
	}

	invalid := []string{
		"",
		"groth16",
		"groth16:",
		"groth16:   ",
		"plonk:abc",
		"stark:abc",
	}
	for _, ref := range invalid {
		if _, _, err := ParseProofRef(ref); !errors.Is(err, domainerrors.ErrInvalidProofRef) {
			t.Fatalf("expected invalid proof ref error for %q, got %v", ref, err)
		}
	}
}
