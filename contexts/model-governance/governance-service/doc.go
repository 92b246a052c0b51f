// Package governanceservice contains the Aegis implementation of the
// model-governance service: proposal lifecycle, weighted vote ledger,
// proof attestations and the governed model registry.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package governanceservice
