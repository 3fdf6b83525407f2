package synthesis

import (
	"context"
	"errors"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	"github.com/jmtrigo/riskmap/internal/core/services/aggregation"
)

// Compile-time check: the orchestrator is the full synthesis surface.
var _ ports.SynthesisService = (*Orchestrator)(nil)

// GetSynthesisResult returns one version of a project's synthesis output, or
// the latest one when resultID is empty. Snapshots are immutable; the same
// resultID always yields the same bytes.
func (o *Orchestrator) GetSynthesisResult(ctx context.Context, projectID, resultID string) (*domain.SynthesisResult, error) {
	if resultID == "" {
		return o.latest(ctx, projectID)
	}
	return o.storage.GetResult(ctx, projectID, resultID)
}

// GetHeatMap aggregates the latest completed snapshot into (rowKey, colKey)
// cells. Computation happens over the stored snapshot, so the heat map for a
// version never changes after the run that produced it.
func (o *Orchestrator) GetHeatMap(ctx context.Context, projectID, rowKey, colKey string) ([]domain.HeatMapCell, error) {
	result, err := o.latest(ctx, projectID)
	if err != nil {
		return nil, err
	}

	rowExtract, err := aggregation.ExtractorFor(rowKey, result.Entities)
	if err != nil {
		return nil, err
	}
	colExtract, err := aggregation.ExtractorFor(colKey, result.Entities)
	if err != nil {
		return nil, err
	}

	return o.aggregator.HeatMap(result.Findings, rowExtract, colExtract), nil
}

// GetGaps returns the coverage gaps of the latest completed snapshot.
func (o *Orchestrator) GetGaps(ctx context.Context, projectID string) ([]domain.Gap, error) {
	result, err := o.latest(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return result.Gaps, nil
}

// GetRedundancies returns the redundancy groups of the latest completed snapshot.
func (o *Orchestrator) GetRedundancies(ctx context.Context, projectID string) ([]domain.Redundancy, error) {
	result, err := o.latest(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return result.Redundancies, nil
}

func (o *Orchestrator) latest(ctx context.Context, projectID string) (*domain.SynthesisResult, error) {
	result, err := o.storage.GetLatestResult(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			return nil, domain.ErrNoCompletedRun
		}
		return nil, err
	}
	return result, nil
}
