package importers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

func TestGenericJSON_Detect(t *testing.T) {
	a := NewGenericJSONAdapter()

	assert.True(t, a.Detect([]byte(`{"format":"riskmap-generic","findings":[]}`)))
	assert.True(t, a.Detect([]byte(`{"findings":[{"id":"f1"}]}`)))
	assert.False(t, a.Detect([]byte(`{"threats":[{"id":"t1"}]}`)))
	assert.False(t, a.Detect([]byte(`id,framework,scale`)))
	assert.False(t, a.Detect([]byte(``)))
}

func TestGenericJSON_TransformPartialSuccess(t *testing.T) {
	input := []byte(`{
		"format": "riskmap-generic",
		"version": 1,
		"findings": [
			{"id": "f1", "source_framework": "stride", "subject_ref": "e1", "category": "Tampering",
			 "native_severity": {"scale": "ordinal", "ordinal": "high"}},
			{"id": "", "source_framework": "stride"},
			{"id": "f3", "source_framework": "made-up"}
		],
		"entities": [
			{"id": "e1", "kind": "asset", "name": "Telemetry DB"},
			{"id": "e2", "kind": "widget", "name": "Bad"}
		]
	}`)

	findings, entities, report, err := NewGenericJSONAdapter().Transform(input)
	require.NoError(t, err)

	require.Len(t, findings, 1)
	assert.Equal(t, "f1", findings[0].ID)
	assert.Equal(t, domain.StatusIdentified, findings[0].Status)

	require.Len(t, entities, 1)
	assert.Equal(t, "e1", entities[0].ID)

	assert.Equal(t, domain.ReportErrors, report.Status())
	assert.Len(t, report.Issues, 3)
}

func TestGenericJSON_ImportedUnifiedRiskDiscarded(t *testing.T) {
	input := []byte(`{"findings":[
		{"id":"f1","source_framework":"stride","unified_risk":99,
		 "native_severity":{"scale":"ordinal","ordinal":"low"}}
	]}`)

	findings, _, _, err := NewGenericJSONAdapter().Transform(input)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.False(t, findings[0].HasUnifiedRisk(), "only the normalizer may set unified risk")
}

func TestGenericJSON_RoundTrip(t *testing.T) {
	a := NewGenericJSONAdapter()
	findings := []domain.Finding{{
		ID:              "f1",
		SourceFramework: domain.FrameworkDREAD,
		SubjectRef:      "e1",
		Category:        "Tampering",
		NativeSeverity: domain.NativeSeverity{
			Scale:      domain.ScaleDREAD,
			Components: []int{8, 9, 10, 9, 9},
			ScaleMax:   10,
		},
		Status: domain.StatusIdentified,
	}}
	entities := []domain.Entity{{ID: "e1", Kind: domain.KindAsset, Name: "Telemetry DB"}}

	data, err := a.Export(findings, entities)
	require.NoError(t, err)
	require.True(t, a.Detect(data))

	gotF, gotE, report, err := a.Transform(data)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportValid, report.Status())
	assert.Equal(t, findings, gotF)
	assert.Equal(t, entities, gotE)
}

func TestGenericCSV_Detect(t *testing.T) {
	a := NewGenericCSVAdapter()

	assert.True(t, a.Detect([]byte("id,framework,subject_ref,category,description,scale,ordinal,likelihood,impact,components,scale_max,cvss,status,mitigations\n")))
	assert.True(t, a.Detect([]byte("framework,id,scale\n")), "column order is free")
	assert.False(t, a.Detect([]byte(`{"findings":[]}`)))
	assert.False(t, a.Detect([]byte("name,value\n")))
}

func TestGenericCSV_Transform(t *testing.T) {
	input := []byte(`id,framework,subject_ref,category,scale,ordinal,likelihood,impact,components,scale_max,cvss,status,mitigations
f1,stpa-sec,e1,Unsafe control action,likelihood-impact,,4,5,,,,identified,validate inputs|rate limit
f2,dread,e1,Tampering,dread,,,,8|9|10|9|9,10,,,
,stride,e1,Spoofing,ordinal,high,,,,,,,
f4,unknown-fw,e1,X,ordinal,low,,,,,,,
f5,generic,e2,CVE,cvss,,,,,,9.8,mitigating,
`)

	findings, entities, report, err := NewGenericCSVAdapter().Transform(input)
	require.NoError(t, err)
	assert.Nil(t, entities)

	require.Len(t, findings, 3)

	assert.Equal(t, "f1", findings[0].ID)
	assert.Equal(t, 4, findings[0].NativeSeverity.Likelihood)
	assert.Equal(t, 5, findings[0].NativeSeverity.Impact)
	assert.Equal(t, []string{"validate inputs", "rate limit"}, findings[0].Mitigations)

	assert.Equal(t, []int{8, 9, 10, 9, 9}, findings[1].NativeSeverity.Components)
	assert.Equal(t, 10, findings[1].NativeSeverity.ScaleMax)
	assert.Equal(t, domain.StatusIdentified, findings[1].Status, "empty status defaults")

	assert.Equal(t, 9.8, findings[2].NativeSeverity.CVSS)
	assert.Equal(t, domain.StatusMitigating, findings[2].Status)

	// Two rows skipped: missing id, unknown framework.
	errs := 0
	for _, issue := range report.Issues {
		if issue.Severity == domain.IssueError {
			errs++
		}
	}
	assert.Equal(t, 2, errs)
}

func TestGenericCSV_MissingRequiredColumn(t *testing.T) {
	_, _, _, err := NewGenericCSVAdapter().Transform([]byte("id,subject_ref\nf1,e1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "framework")
}

func TestGenericCSV_RoundTrip(t *testing.T) {
	a := NewGenericCSVAdapter()
	findings := []domain.Finding{{
		ID:              "f1",
		SourceFramework: domain.FrameworkSTPASec,
		SubjectRef:      "e1",
		Category:        "Unsafe control action",
		Description:     "brake command not issued",
		NativeSeverity: domain.NativeSeverity{
			Scale:      domain.ScaleLikelihoodImpact,
			Likelihood: 4,
			Impact:     5,
		},
		Mitigations: []string{"interlock", "watchdog"},
		Status:      domain.StatusIdentified,
	}}

	data, err := a.Export(findings, nil)
	require.NoError(t, err)
	require.True(t, a.Detect(data))

	got, _, report, err := a.Transform(data)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportValid, report.Status())
	assert.Equal(t, findings, got)
}

func TestSTRIDE_Detect(t *testing.T) {
	a := NewSTRIDEAdapter()
	assert.True(t, a.Detect([]byte(`{"threats":[{"id":"t1"}]}`)))
	assert.False(t, a.Detect([]byte(`{"findings":[]}`)))
}

func TestSTRIDE_Transform(t *testing.T) {
	input := []byte(`{
		"threats": [
			{"id": "t1", "title": "Spoofed telemetry source", "category": "Spoofing",
			 "severity": "High", "mitigations": ["mutual TLS"],
			 "target": {"id": "dfd-3", "name": "Telemetry Ingest", "type": "process"}},
			{"id": "t2", "title": "Log wipe", "category": "Repudiation", "severity": "Medium",
			 "target": {"id": "dfd-7", "name": "Audit Store", "type": "datastore"}},
			{"id": "t3", "title": "Orphan threat", "category": "Tampering", "severity": "Low"}
		]
	}`)

	findings, entities, report, err := NewSTRIDEAdapter().Transform(input)
	require.NoError(t, err)

	require.Len(t, findings, 3)
	assert.Equal(t, domain.FrameworkSTRIDE, findings[0].SourceFramework)
	assert.Equal(t, domain.ScaleOrdinal, findings[0].NativeSeverity.Scale)
	assert.Equal(t, "high", findings[0].NativeSeverity.Ordinal)
	assert.Equal(t, "dfd-3", findings[0].SubjectRef)
	assert.Equal(t, []string{"mutual TLS"}, findings[0].Mitigations)

	require.Len(t, entities, 2)
	assert.Equal(t, "dfd-3", entities[0].ID)
	assert.Equal(t, domain.KindController, entities[0].Kind)
	assert.Equal(t, domain.KindAsset, entities[1].Kind)

	// t3 has no target: warning, not error.
	assert.Equal(t, domain.ReportWarnings, report.Status())
	assert.Empty(t, findings[2].SubjectRef)
}

func TestSTRIDE_UnmappedSeverityKeptVerbatim(t *testing.T) {
	input := []byte(`{"threats":[{"id":"t1","title":"x","category":"Tampering","severity":"Severe"}]}`)

	findings, _, _, err := NewSTRIDEAdapter().Transform(input)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "severe", findings[0].NativeSeverity.Ordinal,
		"unmapped severities pass through for the normalizer to reject with a reason")
}
