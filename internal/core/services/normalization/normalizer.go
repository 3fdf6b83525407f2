package normalization

import (
	"fmt"
	"math"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// Default anchor mapping for the low/medium/high/critical ladder used by
// STRIDE, LINDDUN, HAZOP and OCTAVE.
var defaultOrdinalAnchors = map[string]int{
	domain.OrdinalLow:      25,
	domain.OrdinalMedium:   50,
	domain.OrdinalHigh:     75,
	domain.OrdinalCritical: 100,
}

// Normalizer maps every framework's native scoring onto the unified 0-100
// risk scale. Every transform is a pure function of the finding's
// NativeSeverity; unrecognized scales fail with *domain.UnknownScaleError
// and the finding stays out of aggregates until remapped. No finding is
// ever silently given a default score.
type Normalizer struct {
	ordinalAnchors map[string]int
}

// NewNormalizer creates a normalizer with the default ordinal anchors.
func NewNormalizer() *Normalizer {
	anchors := make(map[string]int, len(defaultOrdinalAnchors))
	for k, v := range defaultOrdinalAnchors {
		anchors[k] = v
	}
	return &Normalizer{ordinalAnchors: anchors}
}

// WithOrdinalOverrides merges extra ordinal value mappings over the
// defaults, so scales like "severe" or "negligible" can be remapped without
// a rebuild. Values outside 0-100 are rejected.
func (n *Normalizer) WithOrdinalOverrides(overrides map[string]int) (*Normalizer, error) {
	for name, score := range overrides {
		if score < 0 || score > 100 {
			return nil, fmt.Errorf("ordinal override %q maps outside 0-100: %d", name, score)
		}
		n.ordinalAnchors[name] = score
	}
	return n, nil
}

// Normalize computes the unified 0-100 risk of one finding.
func (n *Normalizer) Normalize(f domain.Finding) (int, error) {
	s := f.NativeSeverity

	switch s.Scale {
	case domain.ScaleLikelihoodImpact:
		return n.normalizeLikelihoodImpact(f)
	case domain.ScaleDREAD:
		return n.normalizeDREAD(f)
	case domain.ScaleOrdinal:
		return n.normalizeOrdinal(f)
	case domain.ScaleCVSS:
		return n.normalizeCVSS(f)
	}

	return 0, &domain.UnknownScaleError{FindingID: f.ID, Scale: s.Scale}
}

// normalizeLikelihoodImpact handles the STPA-Sec / generic 1-5 × 1-5
// convention: unified = round((likelihood*impact)/25*100).
func (n *Normalizer) normalizeLikelihoodImpact(f domain.Finding) (int, error) {
	s := f.NativeSeverity
	if s.Likelihood < 1 || s.Likelihood > 5 || s.Impact < 1 || s.Impact > 5 {
		return 0, &domain.UnknownScaleError{
			FindingID: f.ID,
			Scale:     s.Scale,
			Detail:    fmt.Sprintf("likelihood %d and impact %d must both be 1-5", s.Likelihood, s.Impact),
		}
	}
	return roundHalfUp(float64(s.Likelihood*s.Impact) / 25.0 * 100.0), nil
}

// normalizeDREAD handles the 5-component sum. The source data carries two
// incompatible conventions (1-3 vs the canonical 0-10 per component), so the
// adapter must declare ScaleMax; the normalizer refuses to guess.
func (n *Normalizer) normalizeDREAD(f domain.Finding) (int, error) {
	s := f.NativeSeverity

	var lo int
	switch s.ScaleMax {
	case 3:
		lo = 1 // 1-3 convention: sum 5-15
	case 10:
		lo = 0 // canonical: sum 0-50
	default:
		return 0, &domain.UnknownScaleError{
			FindingID: f.ID,
			Scale:     s.Scale,
			Detail:    fmt.Sprintf("scale_max must be declared as 3 or 10, got %d", s.ScaleMax),
		}
	}

	if len(s.Components) != 5 {
		return 0, &domain.UnknownScaleError{
			FindingID: f.ID,
			Scale:     s.Scale,
			Detail:    fmt.Sprintf("expected 5 DREAD components, got %d", len(s.Components)),
		}
	}

	sum := 0
	for i, c := range s.Components {
		if c < lo || c > s.ScaleMax {
			return 0, &domain.UnknownScaleError{
				FindingID: f.ID,
				Scale:     s.Scale,
				Detail:    fmt.Sprintf("component %d value %d outside %d-%d", i, c, lo, s.ScaleMax),
			}
		}
		sum += c
	}

	min := 5 * lo
	max := 5 * s.ScaleMax
	return roundHalfUp(float64(sum-min) / float64(max-min) * 100.0), nil
}

// normalizeOrdinal maps low/medium/high/critical (plus any configured
// overrides) onto fixed anchors.
func (n *Normalizer) normalizeOrdinal(f domain.Finding) (int, error) {
	s := f.NativeSeverity
	score, ok := n.ordinalAnchors[s.Ordinal]
	if !ok {
		return 0, &domain.UnknownScaleError{
			FindingID: f.ID,
			Scale:     s.Scale,
			Detail:    fmt.Sprintf("unmapped ordinal value %q", s.Ordinal),
		}
	}
	return score, nil
}

// normalizeCVSS maps the 0.0-10.0 base score: unified = round(cvss*10).
func (n *Normalizer) normalizeCVSS(f domain.Finding) (int, error) {
	s := f.NativeSeverity
	if s.CVSS < 0 || s.CVSS > 10 {
		return 0, &domain.UnknownScaleError{
			FindingID: f.ID,
			Scale:     s.Scale,
			Detail:    fmt.Sprintf("cvss %.1f outside 0.0-10.0", s.CVSS),
		}
	}
	return roundHalfUp(s.CVSS * 10.0), nil
}

// roundHalfUp rounds to nearest with .5 going up, consistent with the
// severity-bucket rounding used by the heat map.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
