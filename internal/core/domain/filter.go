package domain

import (
	"errors"
	"strings"
	"time"
)

// Domain errors for filtering
var (
	ErrInvalidRiskRange = errors.New("risk bounds must be between 0 and 100")
	ErrInvalidTimeRange = errors.New("ImportedAfter cannot be later than ImportedBefore")
)

// FindingFilter defines criteria for filtering and querying findings.
// It follows the Specification Pattern by providing a Matches method to
// keep DB queries and in-memory logic consistent.
type FindingFilter struct {
	Framework      Framework     `json:"framework"`   // "" = any
	Category       string        `json:"category"`    // partial match, case-insensitive
	SubjectRef     string        `json:"subject_ref"` // exact entity ID
	Status         FindingStatus `json:"status"`      // "" = any
	MinRisk        *int          `json:"min_risk"`    // nil = any; findings without a score never match
	MaxRisk        *int          `json:"max_risk"`    // nil = any
	Scored         *bool         `json:"scored"`      // nil = any, true = normalized only
	ImportedAfter  time.Time     `json:"imported_after"`
	ImportedBefore time.Time     `json:"imported_before"`
	Search         string        `json:"search"` // partial match on description
}

// NewFindingFilter initializes an empty match-all filter.
func NewFindingFilter() *FindingFilter {
	return &FindingFilter{}
}

// --- Builder methods ---

func (f *FindingFilter) WithFramework(fw Framework) *FindingFilter {
	f.Framework = fw
	return f
}

func (f *FindingFilter) WithSubject(ref string) *FindingFilter {
	f.SubjectRef = ref
	return f
}

func (f *FindingFilter) WithStatus(s FindingStatus) *FindingFilter {
	f.Status = s
	return f
}

// Validate ensures the filter criteria are logically consistent.
func (f *FindingFilter) Validate() error {
	if f.MinRisk != nil && (*f.MinRisk < 0 || *f.MinRisk > 100) {
		return ErrInvalidRiskRange
	}
	if f.MaxRisk != nil && (*f.MaxRisk < 0 || *f.MaxRisk > 100) {
		return ErrInvalidRiskRange
	}
	if !f.ImportedAfter.IsZero() && !f.ImportedBefore.IsZero() && f.ImportedAfter.After(f.ImportedBefore) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Matches implements the Specification Pattern over one finding.
func (f *FindingFilter) Matches(fd *Finding) bool {
	if fd == nil {
		return false
	}

	if f.Framework != "" && fd.SourceFramework != f.Framework {
		return false
	}

	if f.Category != "" && !strings.Contains(strings.ToLower(fd.Category), strings.ToLower(f.Category)) {
		return false
	}

	if f.SubjectRef != "" && fd.SubjectRef != f.SubjectRef {
		return false
	}

	if f.Status != "" && fd.Status != f.Status {
		return false
	}

	if f.Scored != nil && fd.HasUnifiedRisk() != *f.Scored {
		return false
	}

	// Risk bounds only apply to scored findings; an unscored finding cannot
	// satisfy a risk constraint.
	if f.MinRisk != nil {
		if !fd.HasUnifiedRisk() || *fd.UnifiedRisk < *f.MinRisk {
			return false
		}
	}
	if f.MaxRisk != nil {
		if !fd.HasUnifiedRisk() || *fd.UnifiedRisk > *f.MaxRisk {
			return false
		}
	}

	if !f.ImportedAfter.IsZero() && fd.Import.ImportedAt.Before(f.ImportedAfter) {
		return false
	}
	if !f.ImportedBefore.IsZero() && fd.Import.ImportedAt.After(f.ImportedBefore) {
		return false
	}

	if f.Search != "" && !strings.Contains(strings.ToLower(fd.Description), strings.ToLower(f.Search)) {
		return false
	}

	return true
}
