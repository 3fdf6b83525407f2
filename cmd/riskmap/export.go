package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmtrigo/riskmap/internal/adapters/reporting"
	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/services/export"
)

func newExportCmd() *cobra.Command {
	var (
		projectID  string
		dbPath     string
		exportType string
		format     string
		output     string
	)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Exports findings, the latest synthesis result or gaps to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := loadOffline(dbPath)
			if err != nil {
				return err
			}
			defer application.Storage.Close()

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			ctx := cmd.Context()
			switch exportType + "/" + format {
			case "findings/json":
				findings, err := application.Storage.ListFindings(ctx, projectID, domain.FindingFilter{})
				if err != nil {
					return err
				}
				entities, err := application.Storage.ListEntities(ctx, projectID)
				if err != nil {
					return err
				}
				return export.ExportFindingsJSON(out, findings, entities)

			case "findings/csv":
				findings, err := application.Storage.ListFindings(ctx, projectID, domain.FindingFilter{})
				if err != nil {
					return err
				}
				return export.ExportFindingsCSV(out, findings)

			case "result/json":
				result, err := application.Storage.GetLatestResult(ctx, projectID)
				if err != nil {
					return err
				}
				return export.ExportResultJSON(out, *result)

			case "result/pdf":
				result, err := application.Storage.GetLatestResult(ctx, projectID)
				if err != nil {
					return err
				}
				project, err := application.Storage.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				report := domain.ReportData{
					GeneratedAt: result.ComputedAt,
					GeneratedBy: "riskmap-cli",
					ProjectName: project.Name,
					Result:      *result,
					Stats:       domain.BuildReportStats(*result),
				}
				pdf, err := reporting.NewPDFExporter().ExportSynthesisReport(report)
				if err != nil {
					return err
				}
				_, err = out.Write(pdf)
				return err

			case "gaps/csv":
				result, err := application.Storage.GetLatestResult(ctx, projectID)
				if err != nil {
					return err
				}
				return export.ExportGapsCSV(out, result.Gaps)

			default:
				return fmt.Errorf("unsupported export %s/%s", exportType, format)
			}
		},
	}

	exportCmd.Flags().StringVarP(&projectID, "project", "p", "", "project ID to export from")
	exportCmd.Flags().StringVarP(&exportType, "type", "t", "findings", "what to export: findings, result or gaps")
	exportCmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, csv or pdf")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	exportCmd.Flags().StringVar(&dbPath, "db", "", "database path (overrides RISKMAP_DB)")
	if err := exportCmd.MarkFlagRequired("project"); err != nil {
		panic(fmt.Sprintf("marking flag required: %v", err))
	}

	return exportCmd
}
