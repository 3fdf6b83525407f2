package ports

import (
	"context"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// SynthesisService is the command and query surface the web adapter and CLI
// consume. All query methods are pure reads over completed snapshots; none
// of them triggers a run as a side effect.
type SynthesisService interface {
	// StartSynthesis launches a run over the findings present at call time.
	// Idempotent-safe: a second call while Running returns the in-flight
	// run's ID instead of starting a concurrent run.
	StartSynthesis(ctx context.Context, projectID string, frameworks []domain.Framework) (runID string, err error)

	// GetSynthesisResult returns a specific version, or the latest Completed
	// snapshot when resultID is empty.
	GetSynthesisResult(ctx context.Context, projectID, resultID string) (*domain.SynthesisResult, error)

	// GetHeatMap computes grouped cells over the last Completed snapshot.
	GetHeatMap(ctx context.Context, projectID, rowKey, colKey string) ([]domain.HeatMapCell, error)

	// GetGaps returns the gaps of the last Completed snapshot.
	GetGaps(ctx context.Context, projectID string) ([]domain.Gap, error)

	// GetRedundancies returns the redundancy groups of the last Completed snapshot.
	GetRedundancies(ctx context.Context, projectID string) ([]domain.Redundancy, error)
}

// RunNotifier receives orchestrator progress events; the websocket manager
// implements it to push stage changes to connected UI clients.
type RunNotifier interface {
	NotifyRunStage(projectID, runID, stage string)
	NotifyRunFinished(projectID, runID string, err error)
}
