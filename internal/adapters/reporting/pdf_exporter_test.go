package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

func sampleResult() domain.SynthesisResult {
	risk90, risk61, risk30 := 90, 61, 30
	return domain.SynthesisResult{
		ID:                 "run-aaaa-bbbb",
		ProjectID:          "p1",
		Version:            3,
		FrameworksIncluded: []domain.Framework{domain.FrameworkSTPASec, domain.FrameworkSTRIDE, domain.FrameworkDREAD},
		ComputedAt:         time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC),
		RiskDistribution:   domain.RiskHistogram{Buckets: [5]int{0, 1, 0, 1, 1}},
		Gaps: []domain.Gap{
			{
				SubjectRef:          "h1",
				SubjectKind:         domain.KindHazard,
				SubjectName:         "Loss of separation",
				CoverageCount:       0,
				SeverityOfUncovered: domain.OrdinalHigh,
				SuggestedFrameworks: []domain.Framework{domain.FrameworkSTPASec, domain.FrameworkHAZOP},
			},
		},
		Redundancies: []domain.Redundancy{
			{FindingIDs: []string{"f1", "f2"}, Frameworks: []domain.Framework{domain.FrameworkSTRIDE, domain.FrameworkDREAD}, Confidence: 0.9},
		},
		ConfidenceLevel: 0.87,
		ExcludedFindings: []domain.ExcludedFinding{
			{FindingID: "f9", Reason: "unknown severity scale"},
		},
		Findings: []domain.Finding{
			{ID: "f1", SourceFramework: domain.FrameworkSTRIDE, UnifiedRisk: &risk90, Status: domain.StatusIdentified, Description: "Spoofed command uplink allows unauthorized control actions"},
			{ID: "f2", SourceFramework: domain.FrameworkDREAD, UnifiedRisk: &risk61, Status: domain.StatusMitigating, Description: "Telemetry downlink readable in transit"},
			{ID: "f3", SourceFramework: domain.FrameworkSTPASec, UnifiedRisk: &risk30, Status: domain.StatusMitigated, Description: "Operator display lag"},
			{ID: "f9", SourceFramework: domain.FrameworkSTRIDE, Status: domain.StatusIdentified},
		},
	}
}

func sampleReport() domain.ReportData {
	result := sampleResult()
	return domain.ReportData{
		GeneratedAt: time.Date(2026, 8, 21, 9, 30, 0, 0, time.UTC),
		GeneratedBy: "analyst1",
		ProjectName: "Drone Fleet Assessment",
		Result:      result,
		Stats:       domain.BuildReportStats(result),
	}
}

func TestExportSynthesisReport(t *testing.T) {
	exporter := NewPDFExporter()

	pdfData, err := exporter.ExportSynthesisReport(sampleReport())
	if err != nil {
		t.Fatalf("ExportSynthesisReport() error = %v", err)
	}

	if len(pdfData) == 0 {
		t.Fatal("PDF data is empty")
	}

	// PDF files start with %PDF-
	if !bytes.HasPrefix(pdfData, []byte("%PDF-")) {
		t.Error("Generated data does not have PDF header")
	}

	// Verify reasonable file size (should be at least 2KB for a report)
	if len(pdfData) < 2000 {
		t.Errorf("PDF file size %d bytes seems too small", len(pdfData))
	}

	if len(pdfData) > 1000000 {
		t.Errorf("PDF file size %d bytes seems too large", len(pdfData))
	}

	t.Logf("Generated PDF size: %d bytes", len(pdfData))
}

func TestExportSynthesisReportMinimal(t *testing.T) {
	exporter := NewPDFExporter()

	result := domain.SynthesisResult{
		ID:         "r-empty",
		ProjectID:  "p1",
		Version:    1,
		ComputedAt: time.Now(),
	}
	report := domain.ReportData{
		GeneratedAt: time.Now(),
		GeneratedBy: "test",
		ProjectName: "Empty Project",
		Result:      result,
		Stats:       domain.BuildReportStats(result),
	}

	pdfData, err := exporter.ExportSynthesisReport(report)
	if err != nil {
		t.Fatalf("ExportSynthesisReport() with minimal data error = %v", err)
	}

	if !bytes.HasPrefix(pdfData, []byte("%PDF-")) {
		t.Error("Minimal report does not have PDF header")
	}

	t.Logf("Minimal PDF size: %d bytes", len(pdfData))
}

func TestGetRiskColor(t *testing.T) {
	exporter := &PDFExporter{}

	tests := []struct {
		score float64
		name  string
	}{
		{100, "Critical"},
		{80, "Critical"},
		{79, "High"},
		{60, "High"},
		{59, "Medium"},
		{40, "Medium"},
		{39, "Low"},
		{0, "Low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := exporter.getRiskColor(tt.score)

			if r < 0 || r > 255 {
				t.Errorf("Red value %d out of range [0, 255]", r)
			}
			if g < 0 || g > 255 {
				t.Errorf("Green value %d out of range [0, 255]", g)
			}
			if b < 0 || b > 255 {
				t.Errorf("Blue value %d out of range [0, 255]", b)
			}

			if r == 0 && g == 0 && b == 0 {
				t.Error("Color should not be pure black")
			}
		})
	}
}

func TestGetSeverityColor(t *testing.T) {
	exporter := &PDFExporter{}

	for _, severity := range []string{domain.OrdinalCritical, domain.OrdinalHigh, domain.OrdinalMedium, domain.OrdinalLow, ""} {
		r, g, b := exporter.getSeverityColor(severity)

		if r < 0 || r > 255 || g < 0 || g > 255 || b < 0 || b > 255 {
			t.Errorf("severity %q: RGB (%d,%d,%d) out of range", severity, r, g, b)
		}
	}
}

// Benchmark PDF generation
func BenchmarkPDFExport(b *testing.B) {
	exporter := NewPDFExporter()
	report := sampleReport()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exporter.ExportSynthesisReport(report); err != nil {
			b.Fatal(err)
		}
	}
}
