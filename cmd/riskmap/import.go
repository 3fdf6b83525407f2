package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmtrigo/riskmap/internal/app"
	"github.com/jmtrigo/riskmap/internal/config"
	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// loadOffline builds the full application stack without starting the web
// server, for one-shot commands working directly against the database.
func loadOffline(dbPath string) (*app.Application, error) {
	cfg := config.Load()
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	// One-shot commands never need the tracing exporter.
	cfg.Tracing = false
	return app.New(cfg)
}

func newImportCmd() *cobra.Command {
	var (
		projectID     string
		format        string
		dbPath        string
		createProject bool
	)

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Imports a threat analysis file into a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			application, err := loadOffline(dbPath)
			if err != nil {
				return err
			}
			defer application.Storage.Close()

			ctx := cmd.Context()
			if createProject {
				_, err := application.Storage.GetProject(ctx, projectID)
				if errors.Is(err, domain.ErrProjectNotFound) {
					project, err := domain.NewProject(projectID, projectID)
					if err != nil {
						return err
					}
					if err := application.Storage.SaveProject(ctx, *project); err != nil {
						return err
					}
				}
			}

			summary, err := application.ImportService.Import(ctx, projectID, format, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	importCmd.Flags().StringVarP(&projectID, "project", "p", "", "project ID to import into")
	importCmd.Flags().StringVarP(&format, "format", "f", "", "import format (autodetected when empty)")
	importCmd.Flags().StringVar(&dbPath, "db", "", "database path (overrides RISKMAP_DB)")
	importCmd.Flags().BoolVar(&createProject, "create", false, "create the project if it does not exist")
	if err := importCmd.MarkFlagRequired("project"); err != nil {
		panic(fmt.Sprintf("marking flag required: %v", err))
	}

	return importCmd
}
