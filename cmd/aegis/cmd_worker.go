package main

import (
	"log"

	"github.com/spf13/cobra"

	"aegis/internal/app/bootstrap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the governance worker process",
	RunE:  runWorker,
}

// Worker process data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Start consumers/schedulers (outbox relay, proof results, job retry).
func runWorker(cmd *cobra.Command, _ []string) error {
	log.Println("aegis worker starting")
	app, err := bootstrap.BuildWorker()
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	return app.Run(cmd.Context())
}
