package reporting

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// PDFExporter renders a synthesis snapshot as an executive PDF report.
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportSynthesisReport generates a PDF summary of one synthesis result.
func (e *PDFExporter) ExportSynthesisReport(report domain.ReportData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addRiskScore(pdf, report)
	e.addStatistics(pdf, report)
	e.addHistogram(pdf, report)
	e.addTopFindings(pdf, report)
	e.addGaps(pdf, report)
	e.addFooter(pdf, report)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// addHeader adds the report header
func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report domain.ReportData) {
	// Title
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 15, "Threat Synthesis Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	// Project
	pdf.SetFont("Arial", "", 14)
	pdf.SetTextColor(100, 100, 100) // Gray
	pdf.CellFormat(0, 8, report.ProjectName, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	dateStr := fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 6, dateStr, "", 1, "L", false, 0, "")

	versionStr := fmt.Sprintf("Synthesis version %d, computed %s",
		report.Result.Version,
		report.Result.ComputedAt.Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 6, versionStr, "", 1, "L", false, 0, "")

	frameworks := ""
	for i, fw := range report.Result.FrameworksIncluded {
		if i > 0 {
			frameworks += ", "
		}
		frameworks += string(fw)
	}
	if frameworks != "" {
		pdf.CellFormat(0, 6, "Frameworks: "+frameworks, "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// addRiskScore adds the prominent mean-risk display
func (e *PDFExporter) addRiskScore(pdf *gofpdf.Fpdf, report domain.ReportData) {
	r, g, b := e.getRiskColor(report.Stats.MeanRisk)

	// Draw colored box
	pdf.SetFillColor(r, g, b)
	pdf.Rect(20, pdf.GetY(), 170, 30, "F")

	y := pdf.GetY()

	pdf.SetFont("Arial", "B", 36)
	pdf.SetTextColor(255, 255, 255) // White
	pdf.SetXY(25, y+5)
	scoreStr := fmt.Sprintf("%.0f/100", report.Stats.MeanRisk)
	pdf.CellFormat(80, 20, scoreStr, "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.SetXY(110, y+8)
	pdf.CellFormat(80, 14, "Mean Unified Risk", "", 0, "L", false, 0, "")

	pdf.SetY(y + 35)
	pdf.Ln(5)
}

// getRiskColor returns RGB color based on unified risk
func (e *PDFExporter) getRiskColor(score float64) (r, g, b int) {
	switch {
	case score >= 80:
		return 220, 53, 69 // Red (Critical)
	case score >= 60:
		return 255, 149, 0 // Orange (High)
	case score >= 40:
		return 255, 204, 0 // Yellow (Medium)
	default:
		return 52, 199, 89 // Green (Low)
	}
}

// addStatistics adds synthesis statistics
func (e *PDFExporter) addStatistics(pdf *gofpdf.Fpdf, report domain.ReportData) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Synthesis Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(60, 60, 60)

	stats := []struct {
		label string
		value string
		color []int
	}{
		{"Total Findings", fmt.Sprintf("%d", report.Stats.TotalFindings), []int{0, 102, 204}},
		{"Scored Findings", fmt.Sprintf("%d", report.Stats.ScoredFindings), []int{0, 102, 204}},
		{"Excluded Findings", fmt.Sprintf("%d", report.Stats.ExcludedFindings), []int{255, 149, 0}},
		{"Coverage Gaps", fmt.Sprintf("%d", report.Stats.GapCount), []int{220, 53, 69}},
		{"Redundancy Groups", fmt.Sprintf("%d", report.Stats.RedundancyCount), []int{255, 204, 0}},
		{"Correlation Confidence", fmt.Sprintf("%.2f", report.Result.ConfidenceLevel), []int{0, 102, 204}},
	}

	// Display in 2 columns
	colWidth := 85.0
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}

		pdf.SetXY(x, pdf.GetY())

		// Label
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, stat.label+":", "", 0, "L", false, 0, "")

		// Value
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(stat.color[0], stat.color[1], stat.color[2])
		pdf.CellFormat(colWidth-50, 7, stat.value, "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}

	pdf.Ln(10)
}

// addHistogram adds the risk distribution bands
func (e *PDFExporter) addHistogram(pdf *gofpdf.Fpdf, report domain.ReportData) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Risk Distribution", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	bands := []string{"0-19", "20-39", "40-59", "60-79", "80-100"}
	colors := [][]int{
		{52, 199, 89},
		{52, 199, 89},
		{255, 204, 0},
		{255, 149, 0},
		{220, 53, 69},
	}

	pdf.SetFont("Arial", "", 10)
	for i, band := range bands {
		count := report.Result.RiskDistribution.Buckets[i]
		c := colors[i]

		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(25, 7, band, "", 0, "L", false, 0, "")

		// Bar scaled to the band count; capped so labels stay on the page.
		width := float64(count) * 6
		if width > 120 {
			width = 120
		}
		if width > 0 {
			pdf.SetFillColor(c[0], c[1], c[2])
			pdf.Rect(pdf.GetX(), pdf.GetY()+1.5, width, 4, "F")
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.SetX(pdf.GetX() + width + 2)
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", count), "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// addTopFindings adds the highest-risk findings table
func (e *PDFExporter) addTopFindings(pdf *gofpdf.Fpdf, report domain.ReportData) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Top Findings", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	top := report.Result.ScoredFindings()
	sort.SliceStable(top, func(i, j int) bool {
		if *top[i].UnifiedRisk != *top[j].UnifiedRisk {
			return *top[i].UnifiedRisk > *top[j].UnifiedRisk
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > 10 {
		top = top[:10]
	}

	if len(top) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No scored findings in this snapshot", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	// Table header
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(30, 8, "ID", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Framework", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Risk", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Status", "1", 0, "C", true, 0, "")
	pdf.CellFormat(70, 8, "Description", "1", 1, "L", true, 0, "")

	// Table rows
	pdf.SetFont("Arial", "", 9)
	for _, f := range top {
		risk := *f.UnifiedRisk
		r, g, b := e.getRiskColor(float64(risk))

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(30, 7, f.ID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, string(f.SourceFramework), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", risk), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(25, 7, string(f.Status), "1", 0, "C", false, 0, "")

		desc := f.Description
		if len(desc) > 45 {
			desc = desc[:42] + "..."
		}
		pdf.CellFormat(70, 7, desc, "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// addGaps adds the coverage gap section
func (e *PDFExporter) addGaps(pdf *gofpdf.Fpdf, report domain.ReportData) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Coverage Gaps", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(report.Result.Gaps) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No coverage gaps detected", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for i, gap := range report.Result.Gaps {
		if i >= 8 { // Limit to keep the report to one topic per page
			break
		}

		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		// Severity badge
		r, g, b := e.getSeverityColor(gap.SeverityOfUncovered)
		pdf.SetFillColor(r, g, b)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 9)
		badge := gap.SeverityOfUncovered
		if badge == "" {
			badge = "unknown"
		}
		pdf.CellFormat(25, 6, badge, "", 0, "C", true, 0, "")

		// Subject
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 51, 102)
		pdf.CellFormat(0, 6, fmt.Sprintf("  %s (%s)", gap.SubjectName, gap.SubjectKind), "", 1, "L", false, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(60, 60, 60)
		detail := fmt.Sprintf("Covered by %d finding(s).", gap.CoverageCount)
		if len(gap.SuggestedFrameworks) > 0 {
			detail += " Suggested frameworks:"
			for _, fw := range gap.SuggestedFrameworks {
				detail += " " + string(fw)
			}
		}
		pdf.MultiCell(0, 5, detail, "", "L", false)
		pdf.Ln(3)
	}
}

// getSeverityColor returns RGB color based on ordinal severity
func (e *PDFExporter) getSeverityColor(severity string) (r, g, b int) {
	switch severity {
	case domain.OrdinalCritical:
		return 220, 53, 69 // Red
	case domain.OrdinalHigh:
		return 255, 149, 0 // Orange
	case domain.OrdinalMedium:
		return 255, 204, 0 // Yellow
	default:
		return 52, 199, 89 // Green
	}
}

// addFooter adds the report footer
func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, report domain.ReportData) {
	pdf.SetY(-20)

	// Separator line
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	resultID := report.Result.ID
	if len(resultID) > 8 {
		resultID = resultID[:8]
	}
	footerText := fmt.Sprintf("Generated by %s | Result ID: %s", report.GeneratedBy, resultID)
	pdf.CellFormat(0, 5, footerText, "", 1, "C", false, 0, "")
}
