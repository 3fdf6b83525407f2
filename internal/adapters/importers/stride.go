package importers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// strideDocument is the threat-model export shape produced by the common
// STRIDE tooling: a list of threats, each pointing at an element of the
// data-flow diagram.
type strideDocument struct {
	Threats []strideThreat `json:"threats"`
}

type strideThreat struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Category    string        `json:"category"` // one of the six STRIDE letters, spelled out
	Description string        `json:"description"`
	Severity    string        `json:"severity"` // Low|Medium|High|Critical
	Mitigations []string      `json:"mitigations,omitempty"`
	Target      *strideTarget `json:"target,omitempty"`
}

type strideTarget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // process|datastore|dataflow|external-entity
}

// strideCategories are the six canonical threat classes.
var strideCategories = map[string]bool{
	"spoofing":               true,
	"tampering":              true,
	"repudiation":            true,
	"information disclosure": true,
	"denial of service":      true,
	"elevation of privilege": true,
}

// strideTargetKinds maps DFD element types onto entity kinds.
var strideTargetKinds = map[string]domain.EntityKind{
	"process":         domain.KindController,
	"datastore":       domain.KindAsset,
	"dataflow":        domain.KindDataFlow,
	"external-entity": domain.KindActor,
}

// STRIDEAdapter imports STRIDE threat-model exports, mapping threats onto
// ordinal-scale findings and DFD elements onto entities.
type STRIDEAdapter struct{}

var _ ports.ImportAdapter = (*STRIDEAdapter)(nil)

// NewSTRIDEAdapter creates the STRIDE adapter.
func NewSTRIDEAdapter() *STRIDEAdapter {
	return &STRIDEAdapter{}
}

func (a *STRIDEAdapter) Format() string { return "stride-json" }

// Detect accepts JSON with a top-level threats array.
func (a *STRIDEAdapter) Detect(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var probe struct {
		Threats json.RawMessage `json:"threats"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return false
	}
	return len(probe.Threats) > 0
}

func (a *STRIDEAdapter) Transform(data []byte) ([]domain.Finding, []domain.Entity, domain.ValidationReport, error) {
	var report domain.ValidationReport

	var doc strideDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, report, fmt.Errorf("parsing stride document: %w", err)
	}

	var findings []domain.Finding
	entities := make(map[string]domain.Entity)

	for i, threat := range doc.Threats {
		if threat.ID == "" {
			report.AddError(i, "id", "threat id is required")
			continue
		}

		category := strings.ToLower(strings.TrimSpace(threat.Category))
		if !strideCategories[category] {
			report.AddWarning(i, "category", fmt.Sprintf("%q is not a STRIDE category", threat.Category))
		}

		ordinal := strings.ToLower(strings.TrimSpace(threat.Severity))
		// Left verbatim when unmapped: the normalizer will exclude it with a
		// precise reason rather than the importer guessing a severity.

		subjectRef := ""
		if threat.Target != nil && threat.Target.ID != "" {
			subjectRef = threat.Target.ID
			kind, ok := strideTargetKinds[strings.ToLower(threat.Target.Type)]
			if !ok {
				report.AddWarning(i, "target.type", fmt.Sprintf("unknown element type %q treated as asset", threat.Target.Type))
				kind = domain.KindAsset
			}
			entities[threat.Target.ID] = domain.Entity{
				ID:   threat.Target.ID,
				Kind: kind,
				Name: threat.Target.Name,
			}
		} else {
			report.AddWarning(i, "target", "threat has no target element; it will not correlate")
		}

		description := threat.Description
		if description == "" {
			description = threat.Title
		}

		findings = append(findings, domain.Finding{
			ID:              threat.ID,
			SourceFramework: domain.FrameworkSTRIDE,
			SubjectRef:      subjectRef,
			Category:        threat.Category,
			Description:     description,
			NativeSeverity: domain.NativeSeverity{
				Scale:   domain.ScaleOrdinal,
				Ordinal: ordinal,
			},
			Mitigations: threat.Mitigations,
			Status:      domain.StatusIdentified,
		})
	}

	out := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return findings, out, report, nil
}
