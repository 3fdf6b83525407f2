package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

func newSynthCmd() *cobra.Command {
	var (
		projectID  string
		dbPath     string
		frameworks []string
	)

	synthCmd := &cobra.Command{
		Use:   "synth",
		Short: "Runs a synthesis pass over a project and prints the result summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			var scope []domain.Framework
			for _, f := range frameworks {
				fw := domain.Framework(f)
				if !fw.IsValid() {
					return fmt.Errorf("%w: %q", domain.ErrInvalidFramework, f)
				}
				scope = append(scope, fw)
			}

			application, err := loadOffline(dbPath)
			if err != nil {
				return err
			}
			defer application.Storage.Close()

			ctx := cmd.Context()
			runID, err := application.Orchestrator.StartSynthesis(ctx, projectID, scope)
			if err != nil {
				return err
			}
			application.Orchestrator.Wait()

			result, err := application.Storage.GetLatestResult(ctx, projectID)
			if err != nil {
				return err
			}
			if result.ID != runID {
				return fmt.Errorf("synthesis run %s failed, no snapshot written", runID)
			}

			stats := domain.BuildReportStats(*result)
			summary := map[string]any{
				"run_id":       result.ID,
				"version":      result.Version,
				"computed_at":  result.ComputedAt,
				"findings":     len(result.Findings),
				"entities":     len(result.Entities),
				"edges":        len(result.Edges),
				"gaps":         len(result.Gaps),
				"redundancies": len(result.Redundancies),
				"excluded":     len(result.ExcludedFindings),
				"mean_risk":    stats.MeanRisk,
				"risk_bands":   result.RiskDistribution.Buckets,
				"confidence":   result.ConfidenceLevel,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	synthCmd.Flags().StringVarP(&projectID, "project", "p", "", "project ID to synthesize")
	synthCmd.Flags().StringSliceVar(&frameworks, "frameworks", nil, "restrict the run to these frameworks")
	synthCmd.Flags().StringVar(&dbPath, "db", "", "database path (overrides RISKMAP_DB)")
	if err := synthCmd.MarkFlagRequired("project"); err != nil {
		panic(fmt.Sprintf("marking flag required: %v", err))
	}

	return synthCmd
}
