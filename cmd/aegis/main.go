// aegis is the governance service CLI: api (HTTP process) and worker
// (outbox relay, proof result consumer, training job retry).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Governance-gated model registry service",
	Long: `aegis runs the model governance service: proposal lifecycle, weighted
vote ledger, proof attestations and the governed model registry.

Configuration is read from CONFIG_FILE (yaml) with environment overrides.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(workerCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
