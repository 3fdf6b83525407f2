package importing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtrigo/riskmap/internal/adapters/importers"
	"github.com/jmtrigo/riskmap/internal/adapters/storage"
	"github.com/jmtrigo/riskmap/internal/core/domain"
)

type recordingDeferrer struct {
	active  bool
	applied []func(ctx context.Context) error
}

func (d *recordingDeferrer) Defer(_ string, apply func(ctx context.Context) error) bool {
	if !d.active {
		return false
	}
	d.applied = append(d.applied, apply)
	return true
}

func newService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	project, err := domain.NewProject("p1", "Assessment")
	require.NoError(t, err)
	require.NoError(t, store.SaveProject(context.Background(), *project))

	svc := NewService(store, nil, nil, nil)
	svc.Register(importers.NewGenericJSONAdapter())
	svc.Register(importers.NewGenericCSVAdapter())
	svc.Register(importers.NewSTRIDEAdapter())
	return svc, store
}

func TestImport_ExplicitFormat(t *testing.T) {
	svc, store := newService(t)

	input := []byte(`{"findings":[
		{"id":"f1","source_framework":"stride","subject_ref":"e1",
		 "native_severity":{"scale":"ordinal","ordinal":"high"}}
	],"entities":[{"id":"e1","kind":"asset","name":"Telemetry DB"}]}`)

	summary, err := svc.Import(context.Background(), "p1", "generic-json", "export.json", input)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FindingsImported)
	assert.Equal(t, 1, summary.EntitiesImported)
	assert.False(t, summary.Queued)
	assert.NotEmpty(t, summary.ImportID)

	f, err := store.GetFinding(context.Background(), "p1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "p1", f.ProjectID, "imports are stamped with the project")
	assert.Equal(t, "generic-json", f.Import.Adapter)
	assert.Equal(t, "export.json", f.Import.SourceFile)
	assert.False(t, f.Import.ImportedAt.IsZero())

	e, err := store.GetEntity(context.Background(), "p1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "p1", e.ProjectID)
}

func TestImport_Autodetect(t *testing.T) {
	svc, _ := newService(t)

	summary, err := svc.Import(context.Background(), "p1", "",
		"model.json", []byte(`{"threats":[{"id":"t1","title":"x","category":"Tampering","severity":"High",
		"target":{"id":"dfd-1","name":"API","type":"process"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "stride-json", summary.Adapter)
}

func TestImport_UnknownFormat(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Import(context.Background(), "p1", "xml", "x.xml", []byte("<findings/>"))
	require.Error(t, err)

	_, err = svc.Import(context.Background(), "p1", "", "x.bin", []byte{0x00, 0x01})
	require.Error(t, err)
}

func TestImport_LastWriterWins(t *testing.T) {
	svc, store := newService(t)

	first := []byte(`{"findings":[{"id":"f1","source_framework":"stride","category":"Old",
		"native_severity":{"scale":"ordinal","ordinal":"low"}}]}`)
	_, err := svc.Import(context.Background(), "p1", "generic-json", "a.json", first)
	require.NoError(t, err)

	second := []byte(`{"findings":[{"id":"f1","source_framework":"stride","category":"New",
		"native_severity":{"scale":"ordinal","ordinal":"high"}}]}`)
	_, err = svc.Import(context.Background(), "p1", "generic-json", "b.json", second)
	require.NoError(t, err)

	f, err := store.GetFinding(context.Background(), "p1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "New", f.Category)
	assert.Equal(t, "b.json", f.Import.SourceFile)
}

func TestImport_DeferredWhileRunning(t *testing.T) {
	store := storage.NewMemoryStore()
	project, err := domain.NewProject("p1", "Assessment")
	require.NoError(t, err)
	require.NoError(t, store.SaveProject(context.Background(), *project))

	deferrer := &recordingDeferrer{active: true}
	svc := NewService(store, deferrer, nil, nil)
	svc.Register(importers.NewGenericJSONAdapter())

	summary, err := svc.Import(context.Background(), "p1", "generic-json", "a.json",
		[]byte(`{"findings":[{"id":"f1","source_framework":"stride",
		"native_severity":{"scale":"ordinal","ordinal":"low"}}]}`))
	require.NoError(t, err)
	assert.True(t, summary.Queued)

	// Nothing hits the store until the deferred apply runs.
	_, err = store.GetFinding(context.Background(), "p1", "f1")
	assert.ErrorIs(t, err, domain.ErrFindingNotFound)

	require.Len(t, deferrer.applied, 1)
	require.NoError(t, deferrer.applied[0](context.Background()))
	_, err = store.GetFinding(context.Background(), "p1", "f1")
	assert.NoError(t, err)
}

func TestImport_ReturnsFinishedProjectToDraft(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	project, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, project.Transition(domain.StateRunning))
	require.NoError(t, project.Transition(domain.StateCompleted))
	require.NoError(t, store.SaveProject(ctx, *project))

	_, err = svc.Import(ctx, "p1", "generic-json", "more.json",
		[]byte(`{"findings":[{"id":"f9","source_framework":"stride",
		"native_severity":{"scale":"ordinal","ordinal":"low"}}]}`))
	require.NoError(t, err)

	// New data invalidates the finished run: the project is editable again
	// and the next synthesis sees the fresh findings.
	got, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, got.State)
}

func TestImport_ArchivedProjectRejected(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.ArchiveProject(context.Background(), "p1"))

	_, err := svc.Import(context.Background(), "p1", "generic-json", "a.json", []byte(`{"findings":[]}`))
	assert.ErrorIs(t, err, domain.ErrProjectArchived)
}

func TestImport_SkippedRecordsReported(t *testing.T) {
	svc, _ := newService(t)

	input := []byte(`{"findings":[
		{"id":"f1","source_framework":"stride","native_severity":{"scale":"ordinal","ordinal":"low"}},
		{"id":"","source_framework":"stride"}
	]}`)
	summary, err := svc.Import(context.Background(), "p1", "generic-json", "a.json", input)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FindingsImported)
	assert.Equal(t, 1, summary.RecordsSkipped)
	assert.Equal(t, domain.ReportErrors, summary.Report.Status())
}

func TestFormats(t *testing.T) {
	svc, _ := newService(t)
	assert.Equal(t, []string{"generic-csv", "generic-json", "stride-json"}, svc.Formats())
}
