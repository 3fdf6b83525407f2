package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "riskmap",
	Short: "riskmap merges threat analyses from multiple frameworks into one risk picture",
	Long: `riskmap ingests findings from STPA-Sec, STRIDE, PASTA, DREAD, LINDDUN,
HAZOP, OCTAVE and MAESTRO analyses, correlates the entities they describe,
normalizes their risk scores to a single 0-100 scale and synthesizes
cross-framework heat maps, coverage gaps and redundancy groups.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		slog.SetDefault(logger)
	},
}

func main() {
	// Root context with cancellation on interrupt, shared by all commands.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newSynthCmd())
	rootCmd.AddCommand(newExportCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
