package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmtrigo/riskmap/internal/app"
	"github.com/jmtrigo/riskmap/internal/config"
)

func newServeCmd() *cobra.Command {
	var (
		addr     string
		dbPath   string
		inMemory bool
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the riskmap web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if inMemory {
				cfg.InMemory = true
			}

			application, err := app.New(cfg)
			if err != nil {
				slog.Error("Failed to initialize application", "error", err)
				return err
			}

			return application.Run(cmd.Context())
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides RISKMAP_ADDR)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "database path (overrides RISKMAP_DB)")
	serveCmd.Flags().BoolVar(&inMemory, "memory", false, "keep all data in memory, nothing touches disk")

	return serveCmd
}
