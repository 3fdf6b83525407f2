package gaps

import (
	"sort"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// RedundancyConfidence is the minimum edge confidence for two findings to
// be grouped as a redundancy candidate. Collapsing two genuinely distinct
// findings is a worse failure than leaving a duplicate visible.
const RedundancyConfidence = 0.8

// suggestedFor maps a coverage subject kind to the frameworks whose
// methodology typically covers it.
var suggestedFor = map[domain.EntityKind][]domain.Framework{
	domain.KindHazard:        {domain.FrameworkSTPASec, domain.FrameworkHAZOP},
	domain.KindLoss:          {domain.FrameworkSTPASec, domain.FrameworkOCTAVE},
	domain.KindControlAction: {domain.FrameworkSTPASec, domain.FrameworkSTRIDE},
}

// Detector walks the correlated graph to find coverage gaps and redundant
// findings. It never mutates its input and never auto-merges anything;
// redundancy groups are returned for a human to accept or reject.
type Detector struct {
	minCoverage int
}

// NewDetector creates a detector. Coverage below minCoverage emits a Gap;
// non-positive values select the default of 1 (2 is recommended for
// "adequate" coverage).
func NewDetector(minCoverage int) *Detector {
	if minCoverage <= 0 {
		minCoverage = 1
	}
	return &Detector{minCoverage: minCoverage}
}

// DetectGaps counts, for every hazard, loss and critical control action,
// the findings whose subject resolves to it directly or through an
// equivalent/overlapping entity edge, and emits a Gap where the count falls
// below the configured minimum.
func (d *Detector) DetectGaps(entities []domain.Entity, findings []domain.Finding, edges []domain.CorrelationEdge) []domain.Gap {
	canon := resolveEntities(entities, edges)

	// Coverage per canonical entity cluster.
	coverage := make(map[string]int)
	for _, f := range findings {
		if f.SubjectRef == "" {
			continue
		}
		root := f.SubjectRef
		if c, ok := canon[f.SubjectRef]; ok {
			root = c
		}
		coverage[root]++
	}

	var gaps []domain.Gap
	for _, ent := range entities {
		if !ent.IsCoverageSubject() {
			continue
		}
		count := coverage[canon[ent.ID]]
		if count >= d.minCoverage {
			continue
		}
		gaps = append(gaps, domain.Gap{
			SubjectRef:          ent.ID,
			SubjectKind:         ent.Kind,
			SubjectName:         ent.Name,
			CoverageCount:       count,
			SeverityOfUncovered: worstCaseSeverity(ent),
			SuggestedFrameworks: suggestedFor[ent.Kind],
		})
	}

	sort.Slice(gaps, func(i, j int) bool { return gaps[i].SubjectRef < gaps[j].SubjectRef })
	return gaps
}

// CoverageCount returns how many findings resolve to the given entity,
// using the same resolution as DetectGaps. Exposed so coverage percentages
// in aggregates stay consistent with gap detection.
func (d *Detector) CoverageCount(entityID string, entities []domain.Entity, findings []domain.Finding, edges []domain.CorrelationEdge) int {
	canon := resolveEntities(entities, edges)
	root, ok := canon[entityID]
	if !ok {
		return 0
	}
	count := 0
	for _, f := range findings {
		if f.SubjectRef == "" {
			continue
		}
		fr := f.SubjectRef
		if c, ok := canon[f.SubjectRef]; ok {
			fr = c
		}
		if fr == root {
			count++
		}
	}
	return count
}

// DetectRedundancies groups findings connected by equivalent edges with
// confidence ≥ RedundancyConfidence. Groups of size ≥ 2 are merge
// candidates for human review. Review verdicts already recorded on an edge
// take precedence over the engine's confidence: expert-validated edges
// always link, disputed edges never do.
func (d *Detector) DetectRedundancies(findings []domain.Finding, edges []domain.CorrelationEdge) []domain.Redundancy {
	byID := make(map[string]domain.Finding, len(findings))
	parent := make(map[string]string, len(findings))
	for _, f := range findings {
		byID[f.ID] = f
		parent[f.ID] = f.ID
	}

	var find func(string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}

	groupConf := make(map[string]float64)

	for _, edge := range sortedEdges(edges) {
		if edge.Kind != domain.EdgeEquivalent {
			continue
		}
		conf := effectiveConfidence(edge)
		if conf < RedundancyConfidence {
			continue
		}
		if _, ok := parent[edge.FromID]; !ok {
			continue // entity edge, not a finding edge
		}
		if _, ok := parent[edge.ToID]; !ok {
			continue
		}

		ra, rb := find(edge.FromID), find(edge.ToID)
		if ra != rb {
			if rb < ra {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
		root := find(ra)
		// Group confidence is its weakest accepted link.
		if existing, ok := groupConf[root]; !ok || conf < existing {
			groupConf[root] = conf
		}
	}

	groups := make(map[string][]string)
	for id := range parent {
		root := find(id)
		groups[root] = append(groups[root], id)
	}

	roots := make([]string, 0, len(groups))
	for root, members := range groups {
		if len(members) >= 2 {
			roots = append(roots, root)
		}
	}
	sort.Strings(roots)

	var out []domain.Redundancy
	for _, root := range roots {
		members := groups[root]
		sort.Strings(members)

		frameworks := make(map[domain.Framework]struct{})
		for _, id := range members {
			frameworks[byID[id].SourceFramework] = struct{}{}
		}
		fws := make([]domain.Framework, 0, len(frameworks))
		for fw := range frameworks {
			fws = append(fws, fw)
		}
		sort.Slice(fws, func(i, j int) bool { return fws[i] < fws[j] })

		out = append(out, domain.Redundancy{
			FindingIDs: members,
			Frameworks: fws,
			Confidence: groupConf[root],
		})
	}
	return out
}

// resolveEntities computes canonical cluster representatives over
// equivalent/overlapping entity edges. Smaller ID wins as root so the
// result is order-independent.
func resolveEntities(entities []domain.Entity, edges []domain.CorrelationEdge) map[string]string {
	parent := make(map[string]string, len(entities))
	for _, ent := range entities {
		parent[ent.ID] = ent.ID
	}

	var find func(string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}

	for _, edge := range sortedEdges(edges) {
		if edge.Kind != domain.EdgeEquivalent && edge.Kind != domain.EdgeOverlapping {
			continue
		}
		if edge.Validation == domain.ValidationDisputed {
			continue // a rejected correlation grants no coverage
		}
		if _, ok := parent[edge.FromID]; !ok {
			continue
		}
		if _, ok := parent[edge.ToID]; !ok {
			continue
		}
		ra, rb := find(edge.FromID), find(edge.ToID)
		if ra != rb {
			if rb < ra {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	canon := make(map[string]string, len(parent))
	for id := range parent {
		canon[id] = find(id)
	}
	return canon
}

// effectiveConfidence folds human review into an edge's confidence: an
// expert-validated edge is certain, a disputed one carries none.
func effectiveConfidence(e domain.CorrelationEdge) float64 {
	switch e.Validation {
	case domain.ValidationExpert:
		return 1.0
	case domain.ValidationDisputed:
		return 0
	}
	return e.Confidence
}

func sortedEdges(edges []domain.CorrelationEdge) []domain.CorrelationEdge {
	out := make([]domain.CorrelationEdge, len(edges))
	copy(out, edges)
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// worstCaseSeverity reads the declared worst-case severity off the entity,
// defaulting to high for hazards and losses without one.
func worstCaseSeverity(ent domain.Entity) string {
	if sev, ok := ent.Attributes["severity"]; ok {
		return sev
	}
	if ent.Kind == domain.KindHazard || ent.Kind == domain.KindLoss {
		return domain.OrdinalHigh
	}
	return ""
}
