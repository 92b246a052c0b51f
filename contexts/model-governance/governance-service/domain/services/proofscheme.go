package services

import (
	"strings"

	domainerrors "aegis/contexts/model-governance/governance-service/domain/errors"
)

// ProofScheme tags one of the closed set of supported verification
// algorithm variants. The set is closed and versioned on purpose: the gate
// dispatches on the tag rather than accepting arbitrary verifier plugins.
type ProofScheme string

const (
	// ProofSchemeGroth16 is the pairing-based single-proof check.
	ProofSchemeGroth16 ProofScheme = "groth16"
	// ProofSchemeNova is the recursive aggregate check: one constant-time
	// verification covering a chain of prior proofs.
	ProofSchemeNova ProofScheme = "nova"
)

var supportedSchemes = map[ProofScheme]bool{
	ProofSchemeGroth16: true,
	ProofSchemeNova:    true,
}

// ParseProofRef splits "scheme:payload" and rejects unsupported schemes.
// Verification itself runs out of process; the core only needs the tag to
// route and to refuse proposals it could never gate.
func ParseProofRef(ref string) (ProofScheme, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", domainerrors.ErrInvalidProofRef
	}
	rawScheme, payload, ok := strings.Cut(ref, ":")
	if !ok || strings.TrimSpace(payload) == "" {
		return "", "", domainerrors.ErrInvalidProofRef
	}
	scheme := ProofScheme(strings.ToLower(strings.TrimSpace(rawScheme)))
	if !supportedSchemes[scheme] {
		return "", "", domainerrors.ErrInvalidProofRef
	}
	return scheme, payload, nil
}
