package importers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// GenericEnvelopeFormat identifies the engine's own interchange format. The
// export service writes it and this adapter reads it back, so exported data
// round-trips without loss.
const GenericEnvelopeFormat = "riskmap-generic"

// GenericEnvelope is the JSON interchange document: findings and entities in
// Finding Model shape, plus a format marker for detection.
type GenericEnvelope struct {
	Format   string           `json:"format"`
	Version  int              `json:"version"`
	Findings []domain.Finding `json:"findings"`
	Entities []domain.Entity  `json:"entities,omitempty"`
}

// GenericJSONAdapter imports the engine's interchange envelope. It is the
// default adapter for any tool that can emit Finding Model records directly.
type GenericJSONAdapter struct{}

var _ ports.ImportAdapter = (*GenericJSONAdapter)(nil)
var _ ports.Exporter = (*GenericJSONAdapter)(nil)

// NewGenericJSONAdapter creates the generic JSON adapter.
func NewGenericJSONAdapter() *GenericJSONAdapter {
	return &GenericJSONAdapter{}
}

func (a *GenericJSONAdapter) Format() string { return "generic-json" }

// Detect accepts JSON carrying the envelope marker, or a bare findings array
// at the top level.
func (a *GenericJSONAdapter) Detect(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var probe struct {
		Format   string          `json:"format"`
		Findings json.RawMessage `json:"findings"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return false
	}
	return probe.Format == GenericEnvelopeFormat || len(probe.Findings) > 0
}

// Transform validates each record individually; a bad record is skipped with
// an itemized issue and the rest of the file still imports.
func (a *GenericJSONAdapter) Transform(data []byte) ([]domain.Finding, []domain.Entity, domain.ValidationReport, error) {
	var report domain.ValidationReport

	var env GenericEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, report, fmt.Errorf("parsing generic envelope: %w", err)
	}

	findings := make([]domain.Finding, 0, len(env.Findings))
	for i, f := range env.Findings {
		if f.ID == "" {
			report.AddError(i, "id", "finding id is required")
			continue
		}
		if !f.SourceFramework.IsValid() {
			report.AddError(i, "source_framework", fmt.Sprintf("unrecognized framework %q", f.SourceFramework))
			continue
		}
		if f.Status == "" {
			f.Status = domain.StatusIdentified
		} else if !f.Status.IsValid() {
			report.AddWarning(i, "status", fmt.Sprintf("unknown status %q reset to identified", f.Status))
			f.Status = domain.StatusIdentified
		}
		if f.SubjectRef == "" {
			report.AddWarning(i, "subject_ref", "finding has no subject; it will not correlate or count toward coverage")
		}
		// Imported scores are never trusted; the normalization engine is the
		// only writer of unified risk.
		f.InvalidateRisk()
		findings = append(findings, f)
	}

	entities := make([]domain.Entity, 0, len(env.Entities))
	for i, e := range env.Entities {
		if e.ID == "" {
			report.AddError(i, "id", "entity id is required")
			continue
		}
		if !e.Kind.IsValid() {
			report.AddError(i, "kind", fmt.Sprintf("unrecognized entity kind %q", e.Kind))
			continue
		}
		entities = append(entities, e)
	}

	return findings, entities, report, nil
}

// Export writes findings and entities back out as an envelope that Transform
// accepts unchanged.
func (a *GenericJSONAdapter) Export(findings []domain.Finding, entities []domain.Entity) ([]byte, error) {
	env := GenericEnvelope{
		Format:   GenericEnvelopeFormat,
		Version:  1,
		Findings: findings,
		Entities: entities,
	}
	return json.MarshalIndent(env, "", "  ")
}
