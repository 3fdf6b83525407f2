package ports

import (
	"context"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// ImportAdapter is the capability contract each framework plugin implements
// to turn its native shape into Finding Model records. Concrete formats live
// in internal/adapters/importers; the core only depends on this interface.
//
// Transform must be total over its input: malformed records produce
// validation issues and are skipped, they never abort the whole import.
type ImportAdapter interface {
	// Format returns the stable identifier of the adapter's input format
	// (e.g. "generic-json", "generic-csv", "stride-json").
	Format() string

	// Detect sniffs raw input and reports whether this adapter can parse it.
	Detect(data []byte) bool

	// Transform parses raw input into findings and entities plus a
	// validation report. Returned records are valid; issues describe what
	// was skipped or repaired.
	Transform(data []byte) ([]domain.Finding, []domain.Entity, domain.ValidationReport, error)
}

// NativeAnalyzer is an optional capability for adapters whose framework can
// generate findings from a questionnaire/model rather than a file import.
// Interface segregation: file-only adapters are not forced to stub it.
type NativeAnalyzer interface {
	// Analyze produces findings for the given entities from the framework's
	// own methodology.
	Analyze(ctx context.Context, entities []domain.Entity) ([]domain.Finding, error)
}

// Exporter is an optional capability for adapters whose format can be
// written back out. Export output must round-trip through Transform.
type Exporter interface {
	Export(findings []domain.Finding, entities []domain.Entity) ([]byte, error)
}
