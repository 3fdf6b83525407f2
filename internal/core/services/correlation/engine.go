package correlation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// DefaultThreshold is the minimum combined confidence for a heuristic
// correlation. The default favors precision over recall: an unmatched
// entity is a safer outcome than a wrong merge.
const DefaultThreshold = 0.6

// Signal weights for the heuristic pass. Name overlap dominates; kind and
// attribute structure can only push a borderline name match over the line.
const (
	weightName = 0.7
	weightKind = 0.2
	weightAttr = 0.1
)

// Engine proposes correlation edges between entities and between findings.
// It is deterministic: the same input always yields byte-identical edges,
// with ties broken by lexicographic ID order and no randomness anywhere.
type Engine struct {
	threshold float64
}

// NewEngine creates a correlation engine. A non-positive threshold selects
// DefaultThreshold.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

// Correlate runs the exact-key pass, the heuristic pass, and the finding
// pass over a consistent snapshot, returning the proposed edge set sorted
// by (from, to, kind).
func (e *Engine) Correlate(entities []domain.Entity, findings []domain.Finding) ([]domain.CorrelationEdge, error) {
	// Work on sorted copies so iteration order never depends on the caller.
	ents := make([]domain.Entity, len(entities))
	copy(ents, entities)
	sort.Slice(ents, func(i, j int) bool { return ents[i].ID < ents[j].ID })

	fnds := make([]domain.Finding, len(findings))
	copy(fnds, findings)
	sort.Slice(fnds, func(i, j int) bool { return fnds[i].ID < fnds[j].ID })

	edges := make(map[string]domain.CorrelationEdge)

	if err := e.exactPass(ents, edges); err != nil {
		return nil, err
	}
	if err := e.heuristicPass(ents, edges); err != nil {
		return nil, err
	}
	if err := e.findingPass(ents, fnds, edges); err != nil {
		return nil, err
	}

	out := make([]domain.CorrelationEdge, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromID != out[j].FromID {
			return out[i].FromID < out[j].FromID
		}
		if out[i].ToID != out[j].ToID {
			return out[i].ToID < out[j].ToID
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// exactPass links entities sharing a normalized name+kind key or an explicit
// adapter cross-reference: strength 1.0, confidence 1.0.
func (e *Engine) exactPass(entities []domain.Entity, edges map[string]domain.CorrelationEdge) error {
	byKey := make(map[string][]domain.Entity)
	for _, ent := range entities {
		byKey[ent.MatchKey()] = append(byKey[ent.MatchKey()], ent)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := byKey[key]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				rationale := fmt.Sprintf("exact match: normalized name %q and kind %s",
					group[i].NormalizedName(), group[i].Kind)
				edge, err := domain.NewCorrelationEdge(group[i].ID, group[j].ID,
					domain.EdgeEquivalent, 1.0, 1.0, rationale)
				if err != nil {
					return err
				}
				addEdge(edges, *edge)
			}
		}
	}

	// Explicit cross-references supplied by adapters.
	known := make(map[string]struct{}, len(entities))
	for _, ent := range entities {
		known[ent.ID] = struct{}{}
	}
	for _, ent := range entities {
		for _, ref := range ent.CrossRefs {
			if ref == ent.ID {
				continue
			}
			if _, ok := known[ref]; !ok {
				continue // dangling reference, nothing to link
			}
			edge, err := domain.NewCorrelationEdge(ent.ID, ref, domain.EdgeEquivalent,
				1.0, 1.0, "adapter-declared cross-reference")
			if err != nil {
				return err
			}
			addEdge(edges, *edge)
		}
	}

	return nil
}

// heuristicPass scores every unlinked entity pair on name overlap, kind and
// attribute structure. Pairs at or above the threshold produce an edge whose
// rationale lists exactly which signals matched, so a reviewer can audit
// every automatic correlation.
func (e *Engine) heuristicPass(entities []domain.Entity, edges map[string]domain.CorrelationEdge) error {
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]

			if linked(edges, a.ID, b.ID) {
				continue
			}

			score, rationale := e.scorePair(a, b)
			if score < e.threshold {
				continue
			}

			edge, err := domain.NewCorrelationEdge(a.ID, b.ID, domain.EdgeEquivalent,
				score, score, rationale)
			if err != nil {
				return err
			}
			addEdge(edges, *edge)
		}
	}
	return nil
}

// scorePair computes the combined similarity score and its rationale.
func (e *Engine) scorePair(a, b domain.Entity) (float64, string) {
	aTokens := tokenize(a.Name)
	bTokens := tokenize(b.Name)

	nameScore := jaccard(aTokens, bTokens)

	kindScore := 0.0
	if a.Kind == b.Kind {
		kindScore = 1.0
	}

	attrScore := 0.0
	shared := sharedKeys(a.Attributes, b.Attributes)
	if len(a.Attributes) > 0 && len(b.Attributes) > 0 {
		union := len(a.Attributes) + len(b.Attributes) - len(shared)
		if union > 0 {
			attrScore = float64(len(shared)) / float64(union)
		}
	}

	score := weightName*nameScore + weightKind*kindScore + weightAttr*attrScore

	var signals []string
	if overlap := sharedTokens(aTokens, bTokens); len(overlap) > 0 {
		signals = append(signals, fmt.Sprintf("name tokens overlap %.2f (%s)", nameScore, strings.Join(overlap, ", ")))
	}
	if kindScore > 0 {
		signals = append(signals, fmt.Sprintf("same kind %s", a.Kind))
	}
	if len(shared) > 0 {
		signals = append(signals, fmt.Sprintf("shared attribute keys: %s", strings.Join(shared, ", ")))
	}
	if len(signals) == 0 {
		signals = append(signals, "no matching signals")
	}

	return score, fmt.Sprintf("heuristic score %.2f: %s", score, strings.Join(signals, "; "))
}

// findingPass links findings that resolve to the same entity, directly or
// through an entity-equivalence edge. Findings from different frameworks on
// the same subject overlap by construction; when their categories also
// agree they are proposed as equivalent (redundancy candidates).
func (e *Engine) findingPass(entities []domain.Entity, findings []domain.Finding, edges map[string]domain.CorrelationEdge) error {
	canon, conf := entityResolution(entities, edges)

	// Bucket findings by canonical subject.
	bySubject := make(map[string][]domain.Finding)
	for _, f := range findings {
		if f.SubjectRef == "" {
			continue
		}
		root := f.SubjectRef
		if c, ok := canon[f.SubjectRef]; ok {
			root = c
		}
		bySubject[root] = append(bySubject[root], f)
	}

	subjects := make([]string, 0, len(bySubject))
	for s := range bySubject {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		group := bySubject[subject]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.SourceFramework == b.SourceFramework && a.SubjectRef == b.SubjectRef {
					// Same framework re-stating its own subject is not a
					// cross-framework correlation.
					continue
				}

				pairConf := 1.0
				via := "same subject entity"
				if a.SubjectRef != b.SubjectRef {
					pairConf = conf[pairKey(a.SubjectRef, b.SubjectRef)]
					if pairConf < e.threshold {
						continue
					}
					via = fmt.Sprintf("subjects correlated with confidence %.2f", pairConf)
				}

				kind := domain.EdgeOverlapping
				catScore := jaccard(tokenize(a.Category), tokenize(b.Category))
				rationale := fmt.Sprintf("%s; categories %q vs %q", via, a.Category, b.Category)
				if catScore >= 0.5 {
					kind = domain.EdgeEquivalent
					rationale = fmt.Sprintf("%s; matching category (overlap %.2f)", via, catScore)
				}

				edge, err := domain.NewCorrelationEdge(a.ID, b.ID, kind, pairConf, pairConf, rationale)
				if err != nil {
					return err
				}
				addEdge(edges, *edge)
			}
		}
	}
	return nil
}

// entityResolution computes, from the entity edges proposed so far, the
// canonical representative of each correlated entity cluster plus the
// confidence attached to each linked pair.
func entityResolution(entities []domain.Entity, edges map[string]domain.CorrelationEdge) (map[string]string, map[string]float64) {
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

	conf := make(map[string]float64)

	// Deterministic union order: sorted edge keys.
	keys := make([]string, 0, len(edges))
	for k := range edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		edge := edges[k]
		if _, ok := parent[edge.FromID]; !ok {
			continue // finding edge, not an entity edge
		}
		if _, ok := parent[edge.ToID]; !ok {
			continue
		}
		conf[pairKey(edge.FromID, edge.ToID)] = edge.Confidence

		ra, rb := find(edge.FromID), find(edge.ToID)
		if ra != rb {
			// Smaller ID wins as root so the result is order-independent.
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
	return canon, conf
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// linked reports whether any edge already joins the two IDs.
func linked(edges map[string]domain.CorrelationEdge, a, b string) bool {
	for _, kind := range []domain.EdgeKind{domain.EdgeEquivalent, domain.EdgeOverlapping, domain.EdgeConflicting} {
		x, y := a, b
		if y < x {
			x, y = y, x
		}
		if _, ok := edges[x+"|"+y+"|"+string(kind)]; ok {
			return true
		}
	}
	return false
}

// addEdge inserts an edge unless an existing edge with the same key carries
// higher confidence.
func addEdge(edges map[string]domain.CorrelationEdge, edge domain.CorrelationEdge) {
	if existing, ok := edges[edge.Key()]; ok && existing.Confidence >= edge.Confidence {
		return
	}
	edges[edge.Key()] = edge
}
