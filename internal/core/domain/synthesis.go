package domain

import "time"

// ProjectState is the synthesis lifecycle state of a project.
type ProjectState string

const (
	// StateDraft allows free imports and edits.
	StateDraft ProjectState = "draft"
	// StateRunning means a synthesis pass is in progress; imports are queued.
	StateRunning ProjectState = "running"
	// StateCompleted means the latest result is immutable and queryable.
	StateCompleted ProjectState = "completed"
	// StateFailed means the last run aborted; the prior result is preserved.
	StateFailed ProjectState = "failed"
)

// RiskHistogram buckets unified risk scores into five 20-point bands.
type RiskHistogram struct {
	Buckets [5]int `json:"buckets"` // [0-19] [20-39] [40-59] [60-79] [80-100]
}

// Add places a unified risk score into its band.
func (h *RiskHistogram) Add(risk int) {
	idx := risk / 20
	if idx > 4 {
		idx = 4 // 100 lands in the top band
	}
	if idx < 0 {
		idx = 0
	}
	h.Buckets[idx]++
}

// Total returns the number of scored findings in the histogram.
func (h RiskHistogram) Total() int {
	n := 0
	for _, b := range h.Buckets {
		n += b
	}
	return n
}

// SynthesisResult is the immutable, versioned snapshot produced by one
// synthesis run. It embeds the findings and edges it was computed over so
// historical versions stay queryable after later imports mutate the store.
type SynthesisResult struct {
	ID                 string        `json:"id"`
	ProjectID          string        `json:"project_id"`
	Version            int           `json:"version"`
	FrameworksIncluded []Framework   `json:"frameworks_included"`
	ComputedAt         time.Time     `json:"computed_at"`
	RiskDistribution   RiskHistogram `json:"risk_distribution"`
	Gaps               []Gap         `json:"gaps"`
	Redundancies       []Redundancy  `json:"redundancies"`
	// ConfidenceLevel aggregates edge confidences; 1.0 when every proposed
	// correlation is exact, lower as heuristic matches dominate.
	ConfidenceLevel float64 `json:"confidence_level"`
	// ExcludedFindings lists findings that failed normalization and were
	// left out of every aggregate, with the reason. Low confidence is
	// information, not noise.
	ExcludedFindings []ExcludedFinding `json:"excluded_findings,omitempty"`

	// Snapshot of the correlated, normalized input the run was computed
	// over. Read paths (heat map, finding listings per version) consume
	// this rather than the live store.
	Findings []Finding         `json:"findings"`
	Entities []Entity          `json:"entities"`
	Edges    []CorrelationEdge `json:"edges"`
}

// ExcludedFinding records why a finding was kept out of aggregates.
type ExcludedFinding struct {
	FindingID string `json:"finding_id"`
	Reason    string `json:"reason"`
}

// ScoredFindings returns the snapshot findings that carry a unified risk.
func (r SynthesisResult) ScoredFindings() []Finding {
	out := make([]Finding, 0, len(r.Findings))
	for _, f := range r.Findings {
		if f.HasUnifiedRisk() {
			out = append(out, f)
		}
	}
	return out
}
