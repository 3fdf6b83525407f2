package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

func newTestAdapter(t *testing.T) *SQLiteAdapter {
	t.Helper()
	adapter, err := NewSQLiteAdapter(filepath.Join(t.TempDir(), "riskmap_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func TestSQLite_ProjectLifecycle(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	project, err := domain.NewProject("p1", "Drone Fleet Assessment")
	require.NoError(t, err)
	require.NoError(t, a.SaveProject(ctx, *project))

	got, err := a.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Drone Fleet Assessment", got.Name)
	assert.Equal(t, domain.StateDraft, got.State)

	_, err = a.GetProject(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	require.NoError(t, a.ArchiveProject(ctx, "p1"))
	got, err = a.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.IsArchived())

	assert.ErrorIs(t, a.ArchiveProject(ctx, "ghost"), domain.ErrProjectNotFound)
}

func TestSQLite_FindingRoundTripAndLastWriterWins(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	risk := 90
	f := domain.Finding{
		ID:              "f1",
		ProjectID:       "p1",
		SourceFramework: domain.FrameworkDREAD,
		SubjectRef:      "e1",
		Category:        "Tampering",
		Description:     "firmware image swap",
		NativeSeverity: domain.NativeSeverity{
			Scale:      domain.ScaleDREAD,
			Components: []int{8, 9, 10, 9, 9},
			ScaleMax:   10,
		},
		UnifiedRisk: &risk,
		Mitigations: []string{"signed images"},
		Status:      domain.StatusIdentified,
		Import: domain.ImportMetadata{
			SourceFile: "dread.csv",
			Adapter:    "generic-csv",
			ImportedAt: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, a.SaveFinding(ctx, f))

	got, err := a.GetFinding(ctx, "p1", "f1")
	require.NoError(t, err)
	assert.Equal(t, f, *got)

	// Last writer wins on the same key.
	f.Category = "Supply chain"
	f.UnifiedRisk = nil
	require.NoError(t, a.SaveFinding(ctx, f))
	got, err = a.GetFinding(ctx, "p1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "Supply chain", got.Category)
	assert.False(t, got.HasUnifiedRisk())

	_, err = a.GetFinding(ctx, "p1", "ghost")
	assert.ErrorIs(t, err, domain.ErrFindingNotFound)
}

func TestSQLite_ListFindingsFilter(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	risk40, risk80 := 40, 80
	findings := []domain.Finding{
		{ID: "f1", ProjectID: "p1", SourceFramework: domain.FrameworkSTRIDE, SubjectRef: "e1",
			Status: domain.StatusIdentified, UnifiedRisk: &risk80,
			Description: "spoofed beacon"},
		{ID: "f2", ProjectID: "p1", SourceFramework: domain.FrameworkHAZOP, SubjectRef: "e2",
			Status: domain.StatusMitigated, UnifiedRisk: &risk40},
		{ID: "f3", ProjectID: "p1", SourceFramework: domain.FrameworkSTRIDE, SubjectRef: "e1",
			Status: domain.StatusIdentified}, // unscored
		{ID: "f4", ProjectID: "p2", SourceFramework: domain.FrameworkSTRIDE,
			Status: domain.StatusIdentified},
	}
	require.NoError(t, a.SaveFindingsBatch(ctx, findings))

	all, err := a.ListFindings(ctx, "p1", domain.FindingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3, "projects are isolated")

	stride, err := a.ListFindings(ctx, "p1", domain.FindingFilter{Framework: domain.FrameworkSTRIDE})
	require.NoError(t, err)
	assert.Len(t, stride, 2)

	min := 50
	high, err := a.ListFindings(ctx, "p1", domain.FindingFilter{MinRisk: &min})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "f1", high[0].ID, "unscored findings never match risk bounds")

	scored := true
	got, err := a.ListFindings(ctx, "p1", domain.FindingFilter{Scored: &scored})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	search, err := a.ListFindings(ctx, "p1", domain.FindingFilter{Search: "BEACON"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "f1", search[0].ID)
}

func TestSQLite_EntityRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	e := domain.Entity{
		ID:         "e1",
		ProjectID:  "p1",
		Kind:       domain.KindControlAction,
		Name:       "Deploy brakes",
		Attributes: map[string]string{domain.AttrCritical: "true", "maestroLayer": "actuation"},
		CrossRefs:  []string{"e9"},
	}
	require.NoError(t, a.SaveEntitiesBatch(ctx, []domain.Entity{e}))

	got, err := a.GetEntity(ctx, "p1", "e1")
	require.NoError(t, err)
	assert.Equal(t, e, *got)
	assert.True(t, got.IsCritical())

	list, err := a.ListEntities(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = a.GetEntity(ctx, "p1", "ghost")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestSQLite_EdgesAppendOnly(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	edge, err := domain.NewCorrelationEdge("a", "b", domain.EdgeEquivalent, 0.9, 0.9, "exact match")
	require.NoError(t, err)
	require.NoError(t, a.SaveEdges(ctx, "p1", []domain.CorrelationEdge{*edge}))

	// Re-saving the same key with different strength must only update
	// validation, never the original measurement.
	tampered := *edge
	tampered.Strength = 0.1
	tampered.Rationale = "rewritten"
	tampered.Validation = domain.ValidationExpert
	require.NoError(t, a.SaveEdges(ctx, "p1", []domain.CorrelationEdge{tampered}))

	edges, err := a.ListEdges(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 0.9, edges[0].Strength)
	assert.Equal(t, "exact match", edges[0].Rationale)
	assert.Equal(t, domain.ValidationExpert, edges[0].Validation)

	// A synthesis re-run re-proposes every edge as "auto"; the recorded
	// expert verdict must survive it.
	require.NoError(t, a.SaveEdges(ctx, "p1", []domain.CorrelationEdge{*edge}))
	edges, err = a.ListEdges(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, domain.ValidationExpert, edges[0].Validation)

	// A later human verdict can still change the state.
	disputed := *edge
	disputed.Validation = domain.ValidationDisputed
	require.NoError(t, a.SaveEdges(ctx, "p1", []domain.CorrelationEdge{disputed}))
	edges, err = a.ListEdges(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.ValidationDisputed, edges[0].Validation)
}

func TestMemory_EdgeValidationSurvivesRerun(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	edge, err := domain.NewCorrelationEdge("a", "b", domain.EdgeEquivalent, 0.9, 0.9, "exact match")
	require.NoError(t, err)
	require.NoError(t, m.SaveEdges(ctx, "p1", []domain.CorrelationEdge{*edge}))

	reviewed := *edge
	reviewed.Validation = domain.ValidationExpert
	require.NoError(t, m.SaveEdges(ctx, "p1", []domain.CorrelationEdge{reviewed}))

	// Engine re-run re-proposes the auto edge; the verdict stays.
	require.NoError(t, m.SaveEdges(ctx, "p1", []domain.CorrelationEdge{*edge}))

	edges, err := m.ListEdges(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, domain.ValidationExpert, edges[0].Validation)
}

func TestSQLite_ResultsAppendOnlyAndLatest(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	r1 := domain.SynthesisResult{ID: "r1", ProjectID: "p1", Version: 1, ComputedAt: time.Now().UTC(), ConfidenceLevel: 1.0}
	r2 := domain.SynthesisResult{ID: "r2", ProjectID: "p1", Version: 2, ComputedAt: time.Now().UTC(), ConfidenceLevel: 0.8}
	require.NoError(t, a.SaveResult(ctx, r1))
	require.NoError(t, a.SaveResult(ctx, r2))

	// Overwriting an existing result row is an error by construction.
	assert.Error(t, a.SaveResult(ctx, r1))

	latest, err := a.GetLatestResult(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.ID)

	byID, err := a.GetResult(ctx, "p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, byID.Version)

	list, err := a.ListResults(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Version)

	_, err = a.GetLatestResult(ctx, "empty")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)
}

func TestSQLite_ResultSnapshotRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	risk := 75
	result := domain.SynthesisResult{
		ID:                 "r1",
		ProjectID:          "p1",
		Version:            1,
		FrameworksIncluded: []domain.Framework{domain.FrameworkSTRIDE, domain.FrameworkHAZOP},
		ComputedAt:         time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		RiskDistribution:   domain.RiskHistogram{Buckets: [5]int{0, 0, 0, 1, 0}},
		Gaps: []domain.Gap{{
			SubjectRef: "h1", SubjectKind: domain.KindHazard, SubjectName: "Loss of lift",
		}},
		ConfidenceLevel: 0.95,
		Findings: []domain.Finding{{
			ID: "f1", ProjectID: "p1", SourceFramework: domain.FrameworkSTRIDE,
			UnifiedRisk: &risk, Status: domain.StatusIdentified,
		}},
		Entities: []domain.Entity{{ID: "e1", ProjectID: "p1", Kind: domain.KindAsset, Name: "GCS"}},
	}
	require.NoError(t, a.SaveResult(ctx, result))

	got, err := a.GetResult(ctx, "p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, result, *got)
}

func TestSQLite_PersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskmap_test.db")
	ctx := context.Background()

	a, err := NewSQLiteAdapter(path)
	require.NoError(t, err)
	project, err := domain.NewProject("p1", "Persistent")
	require.NoError(t, err)
	require.NoError(t, a.SaveProject(ctx, *project))
	require.NoError(t, a.SaveFinding(ctx, domain.Finding{
		ID: "f1", ProjectID: "p1", SourceFramework: domain.FrameworkOCTAVE,
		Status: domain.StatusIdentified,
	}))
	require.NoError(t, a.Close())

	reopened, err := NewSQLiteAdapter(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.GetProject(ctx, "p1")
	assert.NoError(t, err)
	_, err = reopened.GetFinding(ctx, "p1", "f1")
	assert.NoError(t, err)
}

func TestSQLite_UserRepo(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	user, err := domain.NewUser("u1", "analyst1", domain.RoleAnalyst)
	require.NoError(t, err)
	user.PasswordHash = "$2a$10$hash"
	require.NoError(t, a.Save(ctx, *user))

	got, err := a.GetByUsername(ctx, "analyst1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAnalyst, got.Role)

	// Lookup is case-insensitive; usernames are stored lowercased.
	got, err = a.GetByUsername(ctx, "ANALYST1")
	require.NoError(t, err)
	assert.Equal(t, "analyst1", got.Username)

	got, err = a.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "analyst1", got.Username)

	_, err = a.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	// Role vocabulary is enforced at the repo boundary too.
	bad := *user
	bad.Role = "operator"
	assert.ErrorIs(t, a.Save(ctx, bad), domain.ErrInvalidRole)

	users, err := a.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestSQLite_AuditRepo(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for _, action := range []domain.AuditAction{domain.ActionImport, domain.ActionSynthesisStarted, domain.ActionSynthesisComplete} {
		entry, err := domain.NewAuditLog("u1", "analyst1", action, "p1", "target", "details")
		require.NoError(t, err)
		require.NoError(t, a.SaveAuditLog(ctx, *entry))
	}

	logs, err := a.ListAuditLogs(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
