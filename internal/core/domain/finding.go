package domain

import (
	"errors"
	"fmt"
	"time"
)

// Framework identifies the threat-analysis methodology a finding came from.
type Framework string

const (
	FrameworkSTPASec Framework = "stpa-sec"
	FrameworkSTRIDE  Framework = "stride"
	FrameworkPASTA   Framework = "pasta"
	FrameworkDREAD   Framework = "dread"
	FrameworkLINDDUN Framework = "linddun"
	FrameworkHAZOP   Framework = "hazop"
	FrameworkOCTAVE  Framework = "octave"
	FrameworkMAESTRO Framework = "maestro"
	FrameworkGeneric Framework = "generic"
)

// IsValid checks if the framework is one the engine knows how to reconcile.
func (f Framework) IsValid() bool {
	switch f {
	case FrameworkSTPASec, FrameworkSTRIDE, FrameworkPASTA, FrameworkDREAD,
		FrameworkLINDDUN, FrameworkHAZOP, FrameworkOCTAVE, FrameworkMAESTRO,
		FrameworkGeneric:
		return true
	}
	return false
}

// SeverityScale names the native scoring convention carried by a finding.
type SeverityScale string

const (
	// ScaleLikelihoodImpact is the STPA-Sec / generic 1-5 × 1-5 convention.
	ScaleLikelihoodImpact SeverityScale = "likelihood-impact"
	// ScaleDREAD is a 5-component sum; per-component range is declared via ScaleMax.
	ScaleDREAD SeverityScale = "dread"
	// ScaleOrdinal is the low/medium/high/critical ladder used by STRIDE,
	// LINDDUN, HAZOP and OCTAVE.
	ScaleOrdinal SeverityScale = "ordinal"
	// ScaleCVSS is the 0.0-10.0 CVSS base score for CVE-linked findings.
	ScaleCVSS SeverityScale = "cvss"
)

// Ordinal severity values accepted on ScaleOrdinal.
const (
	OrdinalLow      = "low"
	OrdinalMedium   = "medium"
	OrdinalHigh     = "high"
	OrdinalCritical = "critical"
)

// NativeSeverity carries a framework's raw score exactly as imported.
// Only the fields relevant to Scale are populated; the normalizer rejects
// anything it cannot interpret instead of guessing.
type NativeSeverity struct {
	Scale      SeverityScale `json:"scale"`
	Ordinal    string        `json:"ordinal,omitempty"`    // low|medium|high|critical
	Likelihood int           `json:"likelihood,omitempty"` // 1-5
	Impact     int           `json:"impact,omitempty"`     // 1-5
	Components []int         `json:"components,omitempty"` // DREAD component values
	ScaleMax   int           `json:"scale_max,omitempty"`  // declared per-component max (3 or 10)
	CVSS       float64       `json:"cvss,omitempty"`       // 0.0-10.0
}

// FindingStatus tracks the mitigation lifecycle of a finding.
type FindingStatus string

const (
	StatusIdentified FindingStatus = "identified"
	StatusMitigating FindingStatus = "mitigating"
	StatusMitigated  FindingStatus = "mitigated"
	StatusAccepted   FindingStatus = "accepted"
)

// IsValid checks if the status is a recognized lifecycle state.
func (s FindingStatus) IsValid() bool {
	switch s {
	case StatusIdentified, StatusMitigating, StatusMitigated, StatusAccepted:
		return true
	}
	return false
}

// ImportMetadata records where a finding came from.
type ImportMetadata struct {
	SourceFile string    `json:"source_file,omitempty"`
	Adapter    string    `json:"adapter,omitempty"`
	ImportedAt time.Time `json:"imported_at"`
}

// Finding is one normalized threat/risk statement from any framework.
// UnifiedRisk is nil until the normalization engine has run; it must never
// survive a NativeSeverity change (see InvalidateRisk).
type Finding struct {
	ID              string         `json:"id"`
	ProjectID       string         `json:"project_id"`
	SourceFramework Framework      `json:"source_framework"`
	SubjectRef      string         `json:"subject_ref"`
	Category        string         `json:"category"`
	Description     string         `json:"description"`
	NativeSeverity  NativeSeverity `json:"native_severity"`
	UnifiedRisk     *int           `json:"unified_risk,omitempty"` // 0-100
	Mitigations     []string       `json:"mitigations,omitempty"`
	Status          FindingStatus  `json:"status"`
	Import          ImportMetadata `json:"import_metadata"`
}

// Domain errors for finding construction.
var (
	ErrEmptyFindingID   = errors.New("finding id cannot be empty")
	ErrInvalidFramework = errors.New("unrecognized source framework")
	ErrInvalidStatus    = errors.New("invalid finding status")
	ErrFindingNotFound  = errors.New("finding not found")
	ErrEntityNotFound   = errors.New("entity not found")
)

// NewFinding is the designated factory for valid findings.
func NewFinding(id, projectID string, framework Framework, subjectRef, category, description string, severity NativeSeverity) (*Finding, error) {
	if id == "" {
		return nil, ErrEmptyFindingID
	}
	if !framework.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFramework, framework)
	}

	return &Finding{
		ID:              id,
		ProjectID:       projectID,
		SourceFramework: framework,
		SubjectRef:      subjectRef,
		Category:        category,
		Description:     description,
		NativeSeverity:  severity,
		Status:          StatusIdentified,
	}, nil
}

// SetNativeSeverity replaces the raw score and invalidates any cached
// unified risk so stale scores cannot leak into aggregates.
func (f *Finding) SetNativeSeverity(s NativeSeverity) {
	f.NativeSeverity = s
	f.InvalidateRisk()
}

// InvalidateRisk clears the unified risk, forcing re-normalization.
func (f *Finding) InvalidateRisk() {
	f.UnifiedRisk = nil
}

// HasUnifiedRisk reports whether the normalizer has scored this finding.
func (f *Finding) HasUnifiedRisk() bool {
	return f.UnifiedRisk != nil
}
