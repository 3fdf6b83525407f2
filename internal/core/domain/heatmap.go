package domain

// KeyExtractor derives a grouping key from a finding. Extractors returning
// "" exclude the finding from the grid.
type KeyExtractor func(Finding) string

// HeatMapCell is one cell of an aggregated grid. Cells with Count == 0 are
// present (not omitted) so consumers can render a complete grid.
type HeatMapCell struct {
	Row         string   `json:"row"`
	Col         string   `json:"col"`
	Count       int      `json:"count"`
	AverageRisk int      `json:"average_risk"` // round-half-up mean of unified risk
	FindingIDs  []string `json:"finding_ids,omitempty"`
}

// Well-known grouping key names accepted by the aggregation engine.
const (
	KeyFramework  = "framework"
	KeyCategory   = "category"
	KeySubject    = "subject"
	KeyStatus     = "status"
	KeyController = "controller" // subject entity of kind controller/controlAction
)
