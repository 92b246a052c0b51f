package main

import (
	"log"

	"github.com/spf13/cobra"

	"aegis/internal/app/bootstrap"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the governance HTTP API process",
	RunE:  runAPI,
}

// API process data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases), seed genesis registry.
// 3) Start HTTP server.
func runAPI(cmd *cobra.Command, _ []string) error {
	log.Println("aegis api starting")
	app, err := bootstrap.BuildAPI()
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	return app.Run(cmd.Context())
}
