package normalization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

func withSeverity(s domain.NativeSeverity) domain.Finding {
	return domain.Finding{ID: "f1", ProjectID: "p1", SourceFramework: domain.FrameworkGeneric, NativeSeverity: s}
}

func TestNormalize_LikelihoodImpact(t *testing.T) {
	tests := []struct {
		name       string
		likelihood int
		impact     int
		want       int
	}{
		{"minimum", 1, 1, 4},
		{"mid", 3, 3, 36},
		{"high", 4, 5, 80},
		{"maximum", 5, 5, 100},
		{"asymmetric", 2, 5, 40},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(withSeverity(domain.NativeSeverity{
				Scale:      domain.ScaleLikelihoodImpact,
				Likelihood: tt.likelihood,
				Impact:     tt.impact,
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_LikelihoodImpactOutOfRange(t *testing.T) {
	n := NewNormalizer()
	for _, sev := range []domain.NativeSeverity{
		{Scale: domain.ScaleLikelihoodImpact, Likelihood: 0, Impact: 3},
		{Scale: domain.ScaleLikelihoodImpact, Likelihood: 3, Impact: 6},
	} {
		_, err := n.Normalize(withSeverity(sev))
		var unknown *domain.UnknownScaleError
		require.ErrorAs(t, err, &unknown)
	}
}

func TestNormalize_DREADCanonicalScale(t *testing.T) {
	// 0-10 per component: sum/50 * 100.
	n := NewNormalizer()
	got, err := n.Normalize(withSeverity(domain.NativeSeverity{
		Scale:      domain.ScaleDREAD,
		Components: []int{8, 9, 10, 9, 9}, // sum 45
		ScaleMax:   10,
	}))
	require.NoError(t, err)
	assert.Equal(t, 90, got)
}

func TestNormalize_DREADThreePointScale(t *testing.T) {
	// 1-3 per component: (sum-5)/10 * 100. All threes maps to 100, not 90.
	n := NewNormalizer()
	got, err := n.Normalize(withSeverity(domain.NativeSeverity{
		Scale:      domain.ScaleDREAD,
		Components: []int{3, 3, 3, 3, 3},
		ScaleMax:   3,
	}))
	require.NoError(t, err)
	assert.Equal(t, 100, got)

	got, err = n.Normalize(withSeverity(domain.NativeSeverity{
		Scale:      domain.ScaleDREAD,
		Components: []int{1, 1, 1, 1, 1},
		ScaleMax:   3,
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestNormalize_DREADRequiresDeclaredScaleMax(t *testing.T) {
	n := NewNormalizer()
	_, err := n.Normalize(withSeverity(domain.NativeSeverity{
		Scale:      domain.ScaleDREAD,
		Components: []int{2, 2, 2, 2, 2},
	}))

	var unknown *domain.UnknownScaleError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Detail, "scale_max")
}

func TestNormalize_DREADComponentValidation(t *testing.T) {
	n := NewNormalizer()

	// Wrong component count.
	_, err := n.Normalize(withSeverity(domain.NativeSeverity{
		Scale:      domain.ScaleDREAD,
		Components: []int{5, 5, 5},
		ScaleMax:   10,
	}))
	var unknown *domain.UnknownScaleError
	require.ErrorAs(t, err, &unknown)

	// Component outside declared range: 0 is invalid on the 1-3 convention.
	_, err = n.Normalize(withSeverity(domain.NativeSeverity{
		Scale:      domain.ScaleDREAD,
		Components: []int{0, 1, 2, 3, 1},
		ScaleMax:   3,
	}))
	require.ErrorAs(t, err, &unknown)
}

func TestNormalize_OrdinalAnchors(t *testing.T) {
	tests := []struct {
		ordinal string
		want    int
	}{
		{domain.OrdinalLow, 25},
		{domain.OrdinalMedium, 50},
		{domain.OrdinalHigh, 75},
		{domain.OrdinalCritical, 100},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.ordinal, func(t *testing.T) {
			got, err := n.Normalize(withSeverity(domain.NativeSeverity{
				Scale:   domain.ScaleOrdinal,
				Ordinal: tt.ordinal,
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_OrdinalOverrides(t *testing.T) {
	n, err := NewNormalizer().WithOrdinalOverrides(map[string]int{"severe": 95, "negligible": 5})
	require.NoError(t, err)

	got, err := n.Normalize(withSeverity(domain.NativeSeverity{Scale: domain.ScaleOrdinal, Ordinal: "severe"}))
	require.NoError(t, err)
	assert.Equal(t, 95, got)

	// Defaults survive the merge.
	got, err = n.Normalize(withSeverity(domain.NativeSeverity{Scale: domain.ScaleOrdinal, Ordinal: domain.OrdinalHigh}))
	require.NoError(t, err)
	assert.Equal(t, 75, got)
}

func TestNormalize_OrdinalOverrideOutOfRange(t *testing.T) {
	_, err := NewNormalizer().WithOrdinalOverrides(map[string]int{"catastrophic": 120})
	require.Error(t, err)
}

func TestNormalize_UnmappedOrdinal(t *testing.T) {
	n := NewNormalizer()
	_, err := n.Normalize(withSeverity(domain.NativeSeverity{Scale: domain.ScaleOrdinal, Ordinal: "severe"}))

	var unknown *domain.UnknownScaleError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "f1", unknown.FindingID)
}

func TestNormalize_CVSS(t *testing.T) {
	tests := []struct {
		cvss float64
		want int
	}{
		{0.0, 0},
		{3.1, 31},
		{7.45, 75}, // half rounds up
		{9.8, 98},
		{10.0, 100},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		got, err := n.Normalize(withSeverity(domain.NativeSeverity{Scale: domain.ScaleCVSS, CVSS: tt.cvss}))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalize_UnknownScaleNeverDefaults(t *testing.T) {
	n := NewNormalizer()
	got, err := n.Normalize(withSeverity(domain.NativeSeverity{Scale: "owasp-risk-rating"}))

	var unknown *domain.UnknownScaleError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 0, got)
	assert.False(t, errors.Is(err, nil))
}

func TestNormalize_MonotoneWithinScale(t *testing.T) {
	n := NewNormalizer()

	prev := -1
	for l := 1; l <= 5; l++ {
		got, err := n.Normalize(withSeverity(domain.NativeSeverity{
			Scale:      domain.ScaleLikelihoodImpact,
			Likelihood: l,
			Impact:     l,
		}))
		require.NoError(t, err)
		assert.Greater(t, got, prev, "risk must grow with likelihood×impact")
		prev = got
	}
}
