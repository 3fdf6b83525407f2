package synthesis

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	"github.com/jmtrigo/riskmap/internal/core/services/aggregation"
	"github.com/jmtrigo/riskmap/internal/core/services/correlation"
	"github.com/jmtrigo/riskmap/internal/core/services/gaps"
	"github.com/jmtrigo/riskmap/internal/core/services/normalization"
	"github.com/jmtrigo/riskmap/internal/telemetry"
)

// Run stage names, pushed to notifiers in order.
const (
	StageSnapshot    = "snapshot"
	StageCorrelation = "correlation"
	StageNormalize   = "normalization"
	StagePersist     = "persist"
	StageGaps        = "gaps"
	StageAggregate   = "aggregation"
	StageFinalize    = "finalize"
)

// QueuedImport is a deferred write captured while a run holds the project.
// It is applied against the live store once the run reaches a terminal state.
type QueuedImport func(ctx context.Context) error

// Orchestrator drives the Draft → Running → Completed|Failed lifecycle. Each
// run works on an in-memory snapshot taken at start; imports arriving while
// Running are queued and applied afterwards, flipping the project back to
// Draft. Results are append-only: a failed run preserves the prior snapshot.
type Orchestrator struct {
	storage    ports.Storage
	correlator *correlation.Engine
	normalizer *normalization.Normalizer
	detector   *gaps.Detector
	aggregator *aggregation.Aggregator
	notifier   ports.RunNotifier
	logger     *slog.Logger

	mu      sync.Mutex
	running map[string]string        // projectID -> in-flight runID
	queued  map[string][]QueuedImport
	// wg tracks background runs so Close can drain them.
	wg sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier wires run progress events to a notifier (the websocket hub).
func WithNotifier(n ports.RunNotifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates the synthesis orchestrator.
func NewOrchestrator(storage ports.Storage, correlator *correlation.Engine, normalizer *normalization.Normalizer, detector *gaps.Detector, aggregator *aggregation.Aggregator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		storage:    storage,
		correlator: correlator,
		normalizer: normalizer,
		detector:   detector,
		aggregator: aggregator,
		logger:     slog.Default(),
		running:    make(map[string]string),
		queued:     make(map[string][]QueuedImport),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartSynthesis launches a background run over the project's current
// findings. If a run is already in flight for the project, its runID is
// returned instead of starting a second one.
func (o *Orchestrator) StartSynthesis(ctx context.Context, projectID string, frameworks []domain.Framework) (string, error) {
	project, err := o.storage.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	if runID, ok := o.running[projectID]; ok {
		o.mu.Unlock()
		return runID, nil
	}

	if err := project.Transition(domain.StateRunning); err != nil {
		o.mu.Unlock()
		return "", err
	}
	runID := uuid.New().String()
	o.running[projectID] = runID
	o.mu.Unlock()

	if err := o.storage.SaveProject(ctx, *project); err != nil {
		o.mu.Lock()
		delete(o.running, projectID)
		o.mu.Unlock()
		return "", &domain.StorageError{Stage: StageSnapshot, Err: err}
	}

	o.logger.Info("synthesis run started", "project_id", projectID, "run_id", runID)

	// The run outlives the request that started it.
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, *project, runID, frameworks)
	}()

	return runID, nil
}

// Defer queues an import mutation if the project is mid-run. It reports
// whether the mutation was queued; when false the caller applies it directly.
func (o *Orchestrator) Defer(projectID string, apply func(ctx context.Context) error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[projectID]; !ok {
		return false
	}
	o.queued[projectID] = append(o.queued[projectID], apply)
	return true
}

// Wait blocks until every in-flight run has reached a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, project domain.Project, runID string, frameworks []domain.Framework) {
	start := time.Now()
	err := o.execute(ctx, &project, runID, frameworks)

	outcome := "completed"
	if err != nil {
		outcome = "failed"
		o.logger.Error("synthesis run failed", "project_id", project.ID, "run_id", runID, "error", err)
		o.fail(ctx, &project)
	}
	telemetry.SynthesisRuns.WithLabelValues(outcome).Inc()
	telemetry.SynthesisDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if o.notifier != nil {
		o.notifier.NotifyRunFinished(project.ID, runID, err)
	}

	o.mu.Lock()
	delete(o.running, project.ID)
	pending := o.queued[project.ID]
	delete(o.queued, project.ID)
	o.mu.Unlock()

	if len(pending) > 0 {
		o.applyQueued(ctx, project.ID, pending)
	}
}

func (o *Orchestrator) execute(ctx context.Context, project *domain.Project, runID string, frameworks []domain.Framework) error {
	// Snapshot. Everything after this line works on the copies; concurrent
	// imports cannot shear the run.
	o.notifyStage(project.ID, runID, StageSnapshot)
	findings, entities, err := o.snapshot(ctx, project.ID, frameworks)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Correlation and normalization are independent; fan out, then a hard
	// barrier before anything that needs both.
	var (
		edges    []domain.CorrelationEdge
		excluded []domain.ExcludedFinding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.notifyStage(project.ID, runID, StageCorrelation)
		var cerr error
		edges, cerr = o.correlator.Correlate(entities, findings)
		return cerr
	})
	g.Go(func() error {
		o.notifyStage(project.ID, runID, StageNormalize)
		excluded = o.normalize(gctx, findings)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.notifyStage(project.ID, runID, StagePersist)
	if err := o.storage.SaveEdges(ctx, project.ID, edges); err != nil {
		return &domain.StorageError{Stage: StagePersist, Err: err}
	}
	if err := o.storage.SaveFindingsBatch(ctx, findings); err != nil {
		return &domain.StorageError{Stage: StagePersist, Err: err}
	}
	for _, e := range edges {
		telemetry.EdgesProposed.WithLabelValues(string(e.Kind)).Inc()
	}
	telemetry.FindingsExcluded.Add(float64(len(excluded)))

	// Gap detection and aggregation both consume the correlated, normalized
	// snapshot; they are independent of each other.
	var (
		gapList      []domain.Gap
		redundancies []domain.Redundancy
		histogram    domain.RiskHistogram
	)
	g, _ = errgroup.WithContext(ctx)
	g.Go(func() error {
		o.notifyStage(project.ID, runID, StageGaps)
		gapList = o.detector.DetectGaps(entities, findings, edges)
		redundancies = o.detector.DetectRedundancies(findings, edges)
		return nil
	})
	g.Go(func() error {
		o.notifyStage(project.ID, runID, StageAggregate)
		histogram = o.aggregator.Histogram(findings)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.notifyStage(project.ID, runID, StageFinalize)
	result := domain.SynthesisResult{
		ID:                 runID,
		ProjectID:          project.ID,
		Version:            project.LatestVersion + 1,
		FrameworksIncluded: frameworksOf(findings),
		ComputedAt:         time.Now().UTC(),
		RiskDistribution:   histogram,
		Gaps:               gapList,
		Redundancies:       redundancies,
		ConfidenceLevel:    confidenceLevel(edges),
		ExcludedFindings:   excluded,
		Findings:           findings,
		Entities:           entities,
		Edges:              edges,
	}
	if err := o.storage.SaveResult(ctx, result); err != nil {
		return &domain.StorageError{Stage: StageFinalize, Err: err}
	}

	if err := project.Transition(domain.StateCompleted); err != nil {
		return err
	}
	project.LatestVersion = result.Version
	if err := o.storage.SaveProject(ctx, *project); err != nil {
		return &domain.StorageError{Stage: StageFinalize, Err: err}
	}

	o.logger.Info("synthesis run completed",
		"project_id", project.ID,
		"run_id", runID,
		"version", result.Version,
		"findings", len(findings),
		"edges", len(edges),
		"gaps", len(gapList),
		"excluded", len(excluded))
	return nil
}

// snapshot loads the run's working set. An empty frameworks list means all.
func (o *Orchestrator) snapshot(ctx context.Context, projectID string, frameworks []domain.Framework) ([]domain.Finding, []domain.Entity, error) {
	var findings []domain.Finding
	if len(frameworks) == 0 {
		all, err := o.storage.ListFindings(ctx, projectID, domain.FindingFilter{})
		if err != nil {
			return nil, nil, &domain.StorageError{Stage: StageSnapshot, Err: err}
		}
		findings = all
	} else {
		for _, fw := range frameworks {
			part, err := o.storage.ListFindings(ctx, projectID, domain.FindingFilter{Framework: fw})
			if err != nil {
				return nil, nil, &domain.StorageError{Stage: StageSnapshot, Err: err}
			}
			findings = append(findings, part...)
		}
	}

	entities, err := o.storage.ListEntities(ctx, projectID)
	if err != nil {
		return nil, nil, &domain.StorageError{Stage: StageSnapshot, Err: err}
	}
	return findings, entities, nil
}

// normalize scores every finding in place. Findings the normalizer rejects
// are recorded as excluded; nothing is ever given a default score.
func (o *Orchestrator) normalize(ctx context.Context, findings []domain.Finding) []domain.ExcludedFinding {
	var excluded []domain.ExcludedFinding
	for i := range findings {
		if ctx.Err() != nil {
			break
		}
		risk, err := o.normalizer.Normalize(findings[i])
		if err != nil {
			findings[i].InvalidateRisk()
			excluded = append(excluded, domain.ExcludedFinding{
				FindingID: findings[i].ID,
				Reason:    err.Error(),
			})
			continue
		}
		findings[i].UnifiedRisk = &risk
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i].FindingID < excluded[j].FindingID })
	return excluded
}

// fail moves the project to Failed. The previous Completed result stays
// untouched; results are append-only.
func (o *Orchestrator) fail(ctx context.Context, project *domain.Project) {
	if err := project.Transition(domain.StateFailed); err != nil {
		o.logger.Error("could not mark project failed", "project_id", project.ID, "error", err)
		return
	}
	if err := o.storage.SaveProject(ctx, *project); err != nil {
		o.logger.Error("could not persist failed state", "project_id", project.ID, "error", err)
	}
}

// applyQueued drains imports deferred during the run and returns the project
// to Draft so the new data is picked up by the next run.
func (o *Orchestrator) applyQueued(ctx context.Context, projectID string, pending []QueuedImport) {
	project, err := o.storage.GetProject(ctx, projectID)
	if err != nil {
		o.logger.Error("could not load project for queued imports", "project_id", projectID, "error", err)
		return
	}
	if err := project.Transition(domain.StateDraft); err != nil {
		o.logger.Error("could not return project to draft", "project_id", projectID, "error", err)
		return
	}
	if err := o.storage.SaveProject(ctx, *project); err != nil {
		o.logger.Error("could not persist draft state", "project_id", projectID, "error", err)
		return
	}

	for i, apply := range pending {
		if err := apply(ctx); err != nil {
			o.logger.Error("queued import failed", "project_id", projectID, "index", i, "error", err)
		}
	}
	o.logger.Info("applied queued imports", "project_id", projectID, "count", len(pending))
}

func (o *Orchestrator) notifyStage(projectID, runID, stage string) {
	if o.notifier != nil {
		o.notifier.NotifyRunStage(projectID, runID, stage)
	}
}

// confidenceLevel is the mean confidence over proposed edges, 1.0 when the
// run proposed none (nothing heuristic to doubt).
func confidenceLevel(edges []domain.CorrelationEdge) float64 {
	if len(edges) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, e := range edges {
		sum += e.Confidence
	}
	return sum / float64(len(edges))
}

// frameworksOf returns the sorted distinct frameworks present in the snapshot.
func frameworksOf(findings []domain.Finding) []domain.Framework {
	set := make(map[domain.Framework]struct{})
	for _, f := range findings {
		set[f.SourceFramework] = struct{}{}
	}
	out := make([]domain.Framework, 0, len(set))
	for fw := range set {
		out = append(out, fw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
