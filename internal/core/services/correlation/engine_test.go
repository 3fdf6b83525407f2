package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

func entity(id string, kind domain.EntityKind, name string) domain.Entity {
	return domain.Entity{ID: id, ProjectID: "p1", Kind: kind, Name: name}
}

func finding(id string, fw domain.Framework, subject, category string) domain.Finding {
	return domain.Finding{ID: id, ProjectID: "p1", SourceFramework: fw, SubjectRef: subject, Category: category}
}

func TestCorrelate_ExactNameAndKind(t *testing.T) {
	entities := []domain.Entity{
		entity("e1", domain.KindController, "Flight  Controller"),
		entity("e2", domain.KindController, "flight controller"),
	}

	edges, err := NewEngine(0).Correlate(entities, nil)
	require.NoError(t, err)

	require.Len(t, edges, 1)
	assert.Equal(t, "e1", edges[0].FromID)
	assert.Equal(t, "e2", edges[0].ToID)
	assert.Equal(t, domain.EdgeEquivalent, edges[0].Kind)
	assert.Equal(t, 1.0, edges[0].Strength)
	assert.Equal(t, 1.0, edges[0].Confidence)
	assert.Contains(t, edges[0].Rationale, "exact match")
}

func TestCorrelate_DifferentKindNoExactMatch(t *testing.T) {
	entities := []domain.Entity{
		entity("e1", domain.KindAsset, "Telemetry"),
		entity("e2", domain.KindDataFlow, "Telemetry"),
	}

	edges, err := NewEngine(0).Correlate(entities, nil)
	require.NoError(t, err)

	for _, e := range edges {
		assert.NotEqual(t, 1.0, e.Confidence, "identical names of different kinds must not be exact matches")
	}
}

func TestCorrelate_CrossReference(t *testing.T) {
	entities := []domain.Entity{
		{ID: "e1", ProjectID: "p1", Kind: domain.KindAsset, Name: "GCS", CrossRefs: []string{"e2"}},
		entity("e2", domain.KindAsset, "Ground Control Station"),
	}

	edges, err := NewEngine(0).Correlate(entities, nil)
	require.NoError(t, err)

	require.Len(t, edges, 1)
	assert.Equal(t, 1.0, edges[0].Confidence)
	assert.Contains(t, edges[0].Rationale, "cross-reference")
}

func TestCorrelate_DanglingCrossRefIgnored(t *testing.T) {
	entities := []domain.Entity{
		{ID: "e1", ProjectID: "p1", Kind: domain.KindAsset, Name: "GCS", CrossRefs: []string{"ghost"}},
	}

	edges, err := NewEngine(0).Correlate(entities, nil)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestCorrelate_HeuristicScoring(t *testing.T) {
	// Shared tokens {payment, service} of {payment, service} and
	// {payment, service, api}: jaccard 2/3. Same kind.
	// score = 0.7*(2/3) + 0.2*1 = 0.6667 ≥ 0.6.
	entities := []domain.Entity{
		entity("e1", domain.KindAsset, "Payment Service"),
		entity("e2", domain.KindAsset, "Payment Service API"),
	}

	edges, err := NewEngine(0.6).Correlate(entities, nil)
	require.NoError(t, err)

	require.Len(t, edges, 1)
	assert.InDelta(t, 0.6667, edges[0].Confidence, 0.001)
	assert.Contains(t, edges[0].Rationale, "name tokens overlap")
	assert.Contains(t, edges[0].Rationale, "same kind")
}

func TestCorrelate_HeuristicBelowThresholdNoEdge(t *testing.T) {
	entities := []domain.Entity{
		entity("e1", domain.KindAsset, "Billing Database"),
		entity("e2", domain.KindAsset, "Audit Log Store"),
	}

	edges, err := NewEngine(0.6).Correlate(entities, nil)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestCorrelate_FindingsSameSubjectDifferentFrameworks(t *testing.T) {
	entities := []domain.Entity{
		entity("e1", domain.KindAsset, "Telemetry Link"),
	}
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1", "Tampering"),
		finding("f2", domain.FrameworkPASTA, "e1", "Data Tampering"),
		finding("f3", domain.FrameworkLINDDUN, "e1", "Identifiability"),
	}

	edges, err := NewEngine(0.6).Correlate(entities, findings)
	require.NoError(t, err)

	byKey := make(map[string]domain.CorrelationEdge)
	for _, e := range edges {
		byKey[e.FromID+"|"+e.ToID] = e
	}

	// Tampering vs Data Tampering share a category token majority: equivalent.
	e12, ok := byKey["f1|f2"]
	require.True(t, ok)
	assert.Equal(t, domain.EdgeEquivalent, e12.Kind)

	// Identifiability is a different concern on the same subject: overlapping.
	e13, ok := byKey["f1|f3"]
	require.True(t, ok)
	assert.Equal(t, domain.EdgeOverlapping, e13.Kind)
}

func TestCorrelate_FindingsSameFrameworkSameSubjectSkipped(t *testing.T) {
	entities := []domain.Entity{
		entity("e1", domain.KindAsset, "Telemetry Link"),
	}
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1", "Tampering"),
		finding("f2", domain.FrameworkSTRIDE, "e1", "Spoofing"),
	}

	edges, err := NewEngine(0.6).Correlate(entities, findings)
	require.NoError(t, err)
	assert.Empty(t, edges, "a framework restating its own subject is not cross-framework correlation")
}

func TestCorrelate_FindingsThroughEntityEquivalence(t *testing.T) {
	entities := []domain.Entity{
		entity("e1", domain.KindAsset, "Ground Station"),
		entity("e2", domain.KindAsset, "Ground Station"),
	}
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1", "Spoofing"),
		finding("f2", domain.FrameworkOCTAVE, "e2", "Spoofing"),
	}

	edges, err := NewEngine(0.6).Correlate(entities, findings)
	require.NoError(t, err)

	var found bool
	for _, e := range edges {
		if e.Touches("f1") && e.Touches("f2") {
			found = true
			assert.Equal(t, domain.EdgeEquivalent, e.Kind)
		}
	}
	assert.True(t, found, "findings on equivalent entities must correlate")
}

func TestCorrelate_Deterministic(t *testing.T) {
	entities := []domain.Entity{
		entity("e3", domain.KindAsset, "Payment Service"),
		entity("e1", domain.KindAsset, "Payment Service API"),
		entity("e2", domain.KindAsset, "Payment Gateway Service"),
	}
	findings := []domain.Finding{
		finding("f2", domain.FrameworkPASTA, "e1", "Tampering"),
		finding("f1", domain.FrameworkSTRIDE, "e3", "Tampering"),
	}

	eng := NewEngine(0.6)
	first, err := eng.Correlate(entities, findings)
	require.NoError(t, err)

	// Shuffle input order.
	reversedE := []domain.Entity{entities[2], entities[0], entities[1]}
	reversedF := []domain.Finding{findings[1], findings[0]}
	second, err := eng.Correlate(reversedE, reversedF)
	require.NoError(t, err)

	assert.Equal(t, first, second, "edge set must not depend on input order")
}

func TestCorrelate_EveryEdgeHasRationale(t *testing.T) {
	entities := []domain.Entity{
		entity("e1", domain.KindAsset, "Payment Service"),
		entity("e2", domain.KindAsset, "Payment Service API"),
	}
	findings := []domain.Finding{
		finding("f1", domain.FrameworkSTRIDE, "e1", "Tampering"),
		finding("f2", domain.FrameworkPASTA, "e2", "Tampering"),
	}

	edges, err := NewEngine(0.6).Correlate(entities, findings)
	require.NoError(t, err)
	require.NotEmpty(t, edges)
	for _, e := range edges {
		assert.NotEmpty(t, e.Rationale)
		assert.Equal(t, domain.ValidationAuto, e.Validation)
	}
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, jaccard([]string{"a", "b"}, []string{"b", "a"}))
	assert.Equal(t, 0.0, jaccard(nil, []string{"a"}))
	assert.InDelta(t, 0.5, jaccard([]string{"a", "b", "c"}, []string{"b", "c", "d"}), 1e-9)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"flight", "controller", "v2"}, tokenize("Flight-Controller (v2)"))
	assert.Empty(t, tokenize("---"))
}
