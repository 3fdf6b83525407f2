package importing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	"github.com/jmtrigo/riskmap/internal/telemetry"
)

// ErrUnknownFormat means no registered adapter claims the input.
var ErrUnknownFormat = errors.New("no import adapter recognizes the input")

// Deferrer lets the import service hand writes to an in-flight synthesis run
// instead of mutating the working set mid-run. The orchestrator implements it.
type Deferrer interface {
	Defer(projectID string, apply func(ctx context.Context) error) bool
}

// ImportSummary reports the outcome of one import call.
type ImportSummary struct {
	ImportID         string                  `json:"import_id"`
	Adapter          string                  `json:"adapter"`
	SourceFile       string                  `json:"source_file,omitempty"`
	FindingsImported int                     `json:"findings_imported"`
	EntitiesImported int                     `json:"entities_imported"`
	RecordsSkipped   int                     `json:"records_skipped"`
	// Queued is true when a synthesis run was in progress and the records
	// will be applied once it finishes.
	Queued bool                    `json:"queued"`
	Report domain.ValidationReport `json:"validation_report"`
}

// Service routes raw framework exports through the matching adapter and
// persists the resulting findings and entities. Imports are last-writer-wins
// per record ID; every import is audit-logged.
type Service struct {
	storage  ports.Storage
	deferrer Deferrer
	audit    ports.AuditService
	logger   *slog.Logger

	mu       sync.RWMutex
	adapters map[string]ports.ImportAdapter
}

// NewService creates the import service. deferrer and audit may be nil in
// tests and one-shot CLI use.
func NewService(storage ports.Storage, deferrer Deferrer, audit ports.AuditService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage:  storage,
		deferrer: deferrer,
		audit:    audit,
		logger:   logger,
		adapters: make(map[string]ports.ImportAdapter),
	}
}

// Register adds an adapter under its format identifier. Registering the same
// format twice replaces the previous adapter.
func (s *Service) Register(adapter ports.ImportAdapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[adapter.Format()] = adapter
}

// Formats lists the registered adapter formats, sorted.
func (s *Service) Formats() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.adapters))
	for f := range s.adapters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Import transforms raw data through the adapter registered under format and
// saves the results into the project. An empty format autodetects via each
// adapter's Detect. Malformed records are skipped, not fatal: the summary's
// validation report itemizes every skip.
func (s *Service) Import(ctx context.Context, projectID, format, sourceFile string, data []byte) (*ImportSummary, error) {
	project, err := s.storage.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.IsArchived() {
		return nil, domain.ErrProjectArchived
	}

	adapter, err := s.resolve(format, data)
	if err != nil {
		return nil, err
	}

	findings, entities, report, err := adapter.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: %w", adapter.Format(), err)
	}

	importID := uuid.New().String()
	meta := domain.ImportMetadata{
		SourceFile: sourceFile,
		Adapter:    adapter.Format(),
		ImportedAt: time.Now().UTC(),
	}
	for i := range findings {
		findings[i].ProjectID = projectID
		findings[i].Import = meta
		if findings[i].Status == "" {
			findings[i].Status = domain.StatusIdentified
		}
	}
	for i := range entities {
		entities[i].ProjectID = projectID
	}

	summary := &ImportSummary{
		ImportID:         importID,
		Adapter:          adapter.Format(),
		SourceFile:       sourceFile,
		FindingsImported: len(findings),
		EntitiesImported: len(entities),
		RecordsSkipped:   skippedCount(report),
		Report:           report,
	}

	apply := func(ctx context.Context) error {
		if err := s.storage.SaveEntitiesBatch(ctx, entities); err != nil {
			return err
		}
		return s.storage.SaveFindingsBatch(ctx, findings)
	}

	if s.deferrer != nil && s.deferrer.Defer(projectID, apply) {
		summary.Queued = true
		s.logger.Info("import queued behind running synthesis",
			"project_id", projectID, "adapter", adapter.Format(), "findings", len(findings))
	} else {
		if err := apply(ctx); err != nil {
			return nil, &domain.StorageError{Stage: "import", Err: err}
		}
		// New data invalidates any finished run: back to Draft until the
		// next synthesis.
		if project.State == domain.StateCompleted || project.State == domain.StateFailed {
			if err := project.Transition(domain.StateDraft); err != nil {
				return nil, err
			}
			if err := s.storage.SaveProject(ctx, *project); err != nil {
				return nil, &domain.StorageError{Stage: "import", Err: err}
			}
		}
	}

	for _, f := range findings {
		telemetry.FindingsImported.WithLabelValues(string(f.SourceFramework), adapter.Format()).Inc()
	}
	telemetry.ImportRecordsSkipped.WithLabelValues(adapter.Format()).Add(float64(summary.RecordsSkipped))

	if s.audit != nil {
		details := fmt.Sprintf("adapter=%s findings=%d entities=%d skipped=%d queued=%t",
			adapter.Format(), len(findings), len(entities), summary.RecordsSkipped, summary.Queued)
		if err := s.audit.Log(ctx, domain.ActionImport, projectID, sourceFile, details); err != nil {
			s.logger.Warn("audit log failed for import", "error", err)
		}
	}

	s.logger.Info("import finished",
		"project_id", projectID,
		"adapter", adapter.Format(),
		"findings", len(findings),
		"entities", len(entities),
		"skipped", summary.RecordsSkipped,
		"queued", summary.Queued)
	return summary, nil
}

// resolve picks the adapter for an explicit format, or sniffs the data when
// the format is empty. Detection order is alphabetical, so it is stable.
func (s *Service) resolve(format string, data []byte) (ports.ImportAdapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if format != "" {
		adapter, ok := s.adapters[format]
		if !ok {
			return nil, fmt.Errorf("%w: no adapter registered for format %q", ErrUnknownFormat, format)
		}
		return adapter, nil
	}

	formats := make([]string, 0, len(s.adapters))
	for f := range s.adapters {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	for _, f := range formats {
		if s.adapters[f].Detect(data) {
			return s.adapters[f], nil
		}
	}
	return nil, ErrUnknownFormat
}

func skippedCount(report domain.ValidationReport) int {
	n := 0
	for _, issue := range report.Issues {
		if issue.Severity == domain.IssueError {
			n++
		}
	}
	return n
}
