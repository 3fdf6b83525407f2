package gaps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

func entity(id string, kind domain.EntityKind, name string, attrs map[string]string) domain.Entity {
	return domain.Entity{ID: id, ProjectID: "p1", Kind: kind, Name: name, Attributes: attrs}
}

func finding(id string, fw domain.Framework, subject string) domain.Finding {
	return domain.Finding{ID: id, ProjectID: "p1", SourceFramework: fw, SubjectRef: subject, Status: domain.StatusIdentified}
}

func TestDetectGaps_UncoveredHazard(t *testing.T) {
	entities := []domain.Entity{
		entity("h1", domain.KindHazard, "Loss of attitude control", nil),
		entity("a1", domain.KindAsset, "Telemetry DB", nil),
	}
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "a1"),
	}

	d := NewDetector(1)
	gaps := d.DetectGaps(entities, findings, nil)

	require.Len(t, gaps, 1)
	assert.Equal(t, "h1", gaps[0].SubjectRef)
	assert.Equal(t, domain.KindHazard, gaps[0].SubjectKind)
	assert.Equal(t, 0, gaps[0].CoverageCount)
	assert.Equal(t, domain.OrdinalHigh, gaps[0].SeverityOfUncovered)
	assert.Contains(t, gaps[0].SuggestedFrameworks, domain.FrameworkSTPASec)
}

func TestDetectGaps_CoverageThroughEntityEdge(t *testing.T) {
	// The hazard itself has no direct findings, but an equivalent entity does.
	entities := []domain.Entity{
		entity("h1", domain.KindHazard, "Data exfiltration", nil),
		entity("h2", domain.KindHazard, "Data exfiltration", nil),
	}
	findings := []domain.Finding{
		finding("f1", domain.FrameworkLINDDUN, "h2"),
	}
	edge, err := domain.NewCorrelationEdge("h1", "h2", domain.EdgeEquivalent, 1.0, 1.0, "exact match")
	require.NoError(t, err)

	d := NewDetector(1)
	gaps := d.DetectGaps(entities, findings, []domain.CorrelationEdge{*edge})

	assert.Empty(t, gaps, "coverage through an equivalent entity closes the gap")
}

func TestDetectGaps_MinCoverageTwo(t *testing.T) {
	entities := []domain.Entity{
		entity("h1", domain.KindHazard, "Runway overrun", nil),
	}
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTPASec, "h1"),
	}

	d := NewDetector(2)
	gaps := d.DetectGaps(entities, findings, nil)

	require.Len(t, gaps, 1)
	assert.Equal(t, 1, gaps[0].CoverageCount)
}

func TestDetectGaps_ControlActionsOnlyWhenCritical(t *testing.T) {
	entities := []domain.Entity{
		entity("ca1", domain.KindControlAction, "Deploy brakes", map[string]string{domain.AttrCritical: "true"}),
		entity("ca2", domain.KindControlAction, "Dim cabin lights", nil),
	}

	d := NewDetector(1)
	gaps := d.DetectGaps(entities, nil, nil)

	require.Len(t, gaps, 1)
	assert.Equal(t, "ca1", gaps[0].SubjectRef)
}

func TestDetectGaps_SeverityFromAttributes(t *testing.T) {
	entities := []domain.Entity{
		entity("l1", domain.KindLoss, "Loss of life", map[string]string{"severity": domain.OrdinalCritical}),
	}

	d := NewDetector(1)
	gaps := d.DetectGaps(entities, nil, nil)

	require.Len(t, gaps, 1)
	assert.Equal(t, domain.OrdinalCritical, gaps[0].SeverityOfUncovered)
}

func TestDetectGaps_Deterministic(t *testing.T) {
	entities := []domain.Entity{
		entity("h2", domain.KindHazard, "B", nil),
		entity("h1", domain.KindHazard, "A", nil),
		entity("h3", domain.KindHazard, "C", nil),
	}

	d := NewDetector(1)
	first := d.DetectGaps(entities, nil, nil)
	second := d.DetectGaps(entities, nil, nil)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "h1", first[0].SubjectRef)
	assert.Equal(t, "h3", first[2].SubjectRef)
}

func TestDetectRedundancies_GroupsEquivalentFindings(t *testing.T) {
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1"),
		finding("f2", domain.FrameworkPASTA, "e1"),
		finding("f3", domain.FrameworkLINDDUN, "e2"),
	}
	e1, err := domain.NewCorrelationEdge("f1", "f2", domain.EdgeEquivalent, 0.9, 0.9, "matching category")
	require.NoError(t, err)

	d := NewDetector(1)
	groups := d.DetectRedundancies(findings, []domain.CorrelationEdge{*e1})

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"f1", "f2"}, groups[0].FindingIDs)
	assert.Equal(t, []domain.Framework{domain.FrameworkPASTA, domain.FrameworkSTRIDE}, groups[0].Frameworks)
	assert.InDelta(t, 0.9, groups[0].Confidence, 1e-9)
}

func TestDetectRedundancies_LowConfidenceIgnored(t *testing.T) {
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1"),
		finding("f2", domain.FrameworkPASTA, "e1"),
	}
	e1, err := domain.NewCorrelationEdge("f1", "f2", domain.EdgeEquivalent, 0.7, 0.7, "weak")
	require.NoError(t, err)

	d := NewDetector(1)
	groups := d.DetectRedundancies(findings, []domain.CorrelationEdge{*e1})

	assert.Empty(t, groups, "edges below 0.8 confidence must not group findings")
}

func TestDetectRedundancies_OverlappingDoesNotGroup(t *testing.T) {
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1"),
		finding("f2", domain.FrameworkPASTA, "e1"),
	}
	e1, err := domain.NewCorrelationEdge("f1", "f2", domain.EdgeOverlapping, 0.95, 0.95, "same subject")
	require.NoError(t, err)

	d := NewDetector(1)
	groups := d.DetectRedundancies(findings, []domain.CorrelationEdge{*e1})

	assert.Empty(t, groups)
}

func TestDetectRedundancies_DisputedEdgeNeverGroups(t *testing.T) {
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1"),
		finding("f2", domain.FrameworkPASTA, "e1"),
	}
	e1, err := domain.NewCorrelationEdge("f1", "f2", domain.EdgeEquivalent, 0.95, 0.95, "same subject")
	require.NoError(t, err)
	e1.Validation = domain.ValidationDisputed

	d := NewDetector(1)
	groups := d.DetectRedundancies(findings, []domain.CorrelationEdge{*e1})

	assert.Empty(t, groups, "a rejected correlation must not propose a merge, whatever its confidence")
}

func TestDetectRedundancies_ExpertEdgeOverridesConfidence(t *testing.T) {
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1"),
		finding("f2", domain.FrameworkPASTA, "e1"),
	}
	// Below the 0.8 threshold, but a human confirmed it.
	e1, err := domain.NewCorrelationEdge("f1", "f2", domain.EdgeEquivalent, 0.6, 0.6, "heuristic")
	require.NoError(t, err)
	e1.Validation = domain.ValidationExpert

	d := NewDetector(1)
	groups := d.DetectRedundancies(findings, []domain.CorrelationEdge{*e1})

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"f1", "f2"}, groups[0].FindingIDs)
	assert.InDelta(t, 1.0, groups[0].Confidence, 1e-9, "an expert-validated link is certain")
}

func TestDetectGaps_DisputedEdgeGrantsNoCoverage(t *testing.T) {
	entities := []domain.Entity{
		entity("h1", domain.KindHazard, "Data exfiltration", nil),
		entity("h2", domain.KindHazard, "Data exfiltration", nil),
	}
	findings := []domain.Finding{
		finding("f1", domain.FrameworkLINDDUN, "h2"),
	}
	edge, err := domain.NewCorrelationEdge("h1", "h2", domain.EdgeEquivalent, 1.0, 1.0, "exact match")
	require.NoError(t, err)
	edge.Validation = domain.ValidationDisputed

	d := NewDetector(1)
	gaps := d.DetectGaps(entities, findings, []domain.CorrelationEdge{*edge})

	require.Len(t, gaps, 1)
	assert.Equal(t, "h1", gaps[0].SubjectRef, "coverage must not flow over a rejected correlation")
}

func TestDetectRedundancies_TransitiveGroupMinConfidence(t *testing.T) {
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1"),
		finding("f2", domain.FrameworkPASTA, "e1"),
		finding("f3", domain.FrameworkDREAD, "e1"),
	}
	e1, err := domain.NewCorrelationEdge("f1", "f2", domain.EdgeEquivalent, 1.0, 1.0, "exact")
	require.NoError(t, err)
	e2, err := domain.NewCorrelationEdge("f2", "f3", domain.EdgeEquivalent, 0.85, 0.85, "heuristic")
	require.NoError(t, err)

	d := NewDetector(1)
	groups := d.DetectRedundancies(findings, []domain.CorrelationEdge{*e1, *e2})

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"f1", "f2", "f3"}, groups[0].FindingIDs)
	assert.InDelta(t, 0.85, groups[0].Confidence, 1e-9, "group confidence is its weakest link")
}
