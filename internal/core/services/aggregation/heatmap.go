package aggregation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// ErrUnknownKey means a grouping key name is not one the engine understands.
var ErrUnknownKey = errors.New("unknown heat map grouping key")

// Aggregator builds heat-map grids and risk summaries over scored findings.
// Findings without a unified risk never enter any aggregate; they are counted
// separately so the UI can surface how much of the picture is missing.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// HeatMap groups the scored findings by (rowKey, colKey) and returns the
// complete grid over every observed row/column value, including zero cells.
// Output ordering is lexicographic by row, then column.
func (a *Aggregator) HeatMap(findings []domain.Finding, rowKey, colKey domain.KeyExtractor) []domain.HeatMapCell {
	type bucket struct {
		ids     []string
		riskSum int
	}

	rows := make(map[string]struct{})
	cols := make(map[string]struct{})
	cells := make(map[string]*bucket)

	for _, f := range findings {
		if !f.HasUnifiedRisk() {
			continue
		}
		row := rowKey(f)
		col := colKey(f)
		if row == "" || col == "" {
			continue
		}
		rows[row] = struct{}{}
		cols[col] = struct{}{}

		key := row + "\x00" + col
		b := cells[key]
		if b == nil {
			b = &bucket{}
			cells[key] = b
		}
		b.ids = append(b.ids, f.ID)
		b.riskSum += *f.UnifiedRisk
	}

	rowValues := sortedKeys(rows)
	colValues := sortedKeys(cols)

	out := make([]domain.HeatMapCell, 0, len(rowValues)*len(colValues))
	for _, row := range rowValues {
		for _, col := range colValues {
			cell := domain.HeatMapCell{Row: row, Col: col}
			if b := cells[row+"\x00"+col]; b != nil {
				sort.Strings(b.ids)
				cell.Count = len(b.ids)
				cell.AverageRisk = roundHalfUp(float64(b.riskSum) / float64(len(b.ids)))
				cell.FindingIDs = b.ids
			}
			out = append(out, cell)
		}
	}
	return out
}

// Histogram distributes scored findings over the five 20-point risk bands.
func (a *Aggregator) Histogram(findings []domain.Finding) domain.RiskHistogram {
	var h domain.RiskHistogram
	for _, f := range findings {
		if f.HasUnifiedRisk() {
			h.Add(*f.UnifiedRisk)
		}
	}
	return h
}

// MeanRisk returns the round-half-up mean unified risk over scored findings,
// and false when nothing is scored.
func (a *Aggregator) MeanRisk(findings []domain.Finding) (int, bool) {
	sum, count := 0, 0
	for _, f := range findings {
		if f.HasUnifiedRisk() {
			sum += *f.UnifiedRisk
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return roundHalfUp(float64(sum) / float64(count)), true
}

// TopFindings returns the n highest-risk scored findings, ties broken by ID
// so the ranking is stable.
func (a *Aggregator) TopFindings(findings []domain.Finding, n int) []domain.Finding {
	scored := make([]domain.Finding, 0, len(findings))
	for _, f := range findings {
		if f.HasUnifiedRisk() {
			scored = append(scored, f)
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if *scored[i].UnifiedRisk != *scored[j].UnifiedRisk {
			return *scored[i].UnifiedRisk > *scored[j].UnifiedRisk
		}
		return scored[i].ID < scored[j].ID
	})
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

// ExtractorFor resolves a grouping key name to its extractor. Subject-derived
// keys need the entity snapshot to resolve names and kinds.
func ExtractorFor(key string, entities []domain.Entity) (domain.KeyExtractor, error) {
	byID := make(map[string]domain.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	switch key {
	case domain.KeyFramework:
		return func(f domain.Finding) string { return string(f.SourceFramework) }, nil
	case domain.KeyCategory:
		return func(f domain.Finding) string { return f.Category }, nil
	case domain.KeyStatus:
		return func(f domain.Finding) string { return string(f.Status) }, nil
	case domain.KeySubject:
		return func(f domain.Finding) string {
			if ent, ok := byID[f.SubjectRef]; ok {
				return ent.Name
			}
			return f.SubjectRef
		}, nil
	case domain.KeyController:
		return func(f domain.Finding) string {
			ent, ok := byID[f.SubjectRef]
			if !ok {
				return ""
			}
			if ent.Kind != domain.KindController && ent.Kind != domain.KindControlAction {
				return ""
			}
			return ent.Name
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
