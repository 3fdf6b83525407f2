package importers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// csvColumns is the fixed header of the generic CSV format. Multi-valued
// fields use pipe separators inside a cell.
var csvColumns = []string{
	"id", "framework", "subject_ref", "category", "description",
	"scale", "ordinal", "likelihood", "impact", "components", "scale_max",
	"cvss", "status", "mitigations",
}

// GenericCSVAdapter imports flat spreadsheet exports. Teams that track
// findings in sheets map their columns to this header once and re-import on
// every revision.
type GenericCSVAdapter struct{}

var _ ports.ImportAdapter = (*GenericCSVAdapter)(nil)
var _ ports.Exporter = (*GenericCSVAdapter)(nil)

// NewGenericCSVAdapter creates the generic CSV adapter.
func NewGenericCSVAdapter() *GenericCSVAdapter {
	return &GenericCSVAdapter{}
}

func (a *GenericCSVAdapter) Format() string { return "generic-csv" }

// Detect accepts input whose first line is the expected header, in any
// column order.
func (a *GenericCSVAdapter) Detect(data []byte) bool {
	line, _, _ := bytes.Cut(bytes.TrimSpace(data), []byte("\n"))
	fields := strings.Split(strings.TrimSpace(string(line)), ",")
	if len(fields) < 3 {
		return false
	}
	seen := make(map[string]bool)
	for _, f := range fields {
		seen[strings.TrimSpace(strings.ToLower(f))] = true
	}
	return seen["id"] && seen["framework"] && seen["scale"]
}

// Transform parses row by row. A malformed row produces a validation issue
// and is skipped; the import never aborts on bad rows.
func (a *GenericCSVAdapter) Transform(data []byte) ([]domain.Finding, []domain.Entity, domain.ValidationReport, error) {
	var report domain.ValidationReport

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // row length validated per record below

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, report, fmt.Errorf("parsing csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, report, fmt.Errorf("empty csv input")
	}

	col := make(map[string]int)
	for i, name := range rows[0] {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"id", "framework", "scale"} {
		if _, ok := col[required]; !ok {
			return nil, nil, report, fmt.Errorf("csv header is missing column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var findings []domain.Finding
	for i, row := range rows[1:] {
		record := i // zero-based data row index for the report

		id := cell(row, "id")
		if id == "" {
			report.AddError(record, "id", "finding id is required")
			continue
		}
		framework := domain.Framework(cell(row, "framework"))
		if !framework.IsValid() {
			report.AddError(record, "framework", fmt.Sprintf("unrecognized framework %q", framework))
			continue
		}

		severity, issues := parseSeverity(row, cell)
		for _, issue := range issues {
			report.AddWarning(record, issue.field, issue.message)
		}

		status := domain.FindingStatus(cell(row, "status"))
		if status == "" {
			status = domain.StatusIdentified
		} else if !status.IsValid() {
			report.AddWarning(record, "status", fmt.Sprintf("unknown status %q reset to identified", status))
			status = domain.StatusIdentified
		}

		f := domain.Finding{
			ID:              id,
			SourceFramework: framework,
			SubjectRef:      cell(row, "subject_ref"),
			Category:        cell(row, "category"),
			Description:     cell(row, "description"),
			NativeSeverity:  severity,
			Status:          status,
		}
		if m := cell(row, "mitigations"); m != "" {
			f.Mitigations = strings.Split(m, "|")
		}
		findings = append(findings, f)
	}

	// CSV carries findings only; entities come from a JSON import or the API.
	return findings, nil, report, nil
}

type cellIssue struct {
	field   string
	message string
}

// parseSeverity reads the scale columns verbatim. Range validation belongs to
// the normalizer; here only number syntax is checked so unparseable cells are
// surfaced at import time.
func parseSeverity(row []string, cell func([]string, string) string) (domain.NativeSeverity, []cellIssue) {
	var issues []cellIssue
	sev := domain.NativeSeverity{
		Scale:   domain.SeverityScale(cell(row, "scale")),
		Ordinal: strings.ToLower(cell(row, "ordinal")),
	}

	atoi := func(name string) int {
		raw := cell(row, name)
		if raw == "" {
			return 0
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			issues = append(issues, cellIssue{name, fmt.Sprintf("not a number: %q", raw)})
			return 0
		}
		return v
	}

	sev.Likelihood = atoi("likelihood")
	sev.Impact = atoi("impact")
	sev.ScaleMax = atoi("scale_max")

	if raw := cell(row, "components"); raw != "" {
		for _, part := range strings.Split(raw, "|") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				issues = append(issues, cellIssue{"components", fmt.Sprintf("not a number: %q", part)})
				continue
			}
			sev.Components = append(sev.Components, v)
		}
	}

	if raw := cell(row, "cvss"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			issues = append(issues, cellIssue{"cvss", fmt.Sprintf("not a number: %q", raw)})
		} else {
			sev.CVSS = v
		}
	}

	return sev, issues
}

// Export writes findings back out in the same column layout Transform reads.
func (a *GenericCSVAdapter) Export(findings []domain.Finding, _ []domain.Entity) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvColumns); err != nil {
		return nil, err
	}
	for _, f := range findings {
		components := make([]string, len(f.NativeSeverity.Components))
		for i, c := range f.NativeSeverity.Components {
			components[i] = strconv.Itoa(c)
		}
		cvss := ""
		if f.NativeSeverity.CVSS != 0 {
			cvss = strconv.FormatFloat(f.NativeSeverity.CVSS, 'f', -1, 64)
		}
		row := []string{
			f.ID,
			string(f.SourceFramework),
			f.SubjectRef,
			f.Category,
			f.Description,
			string(f.NativeSeverity.Scale),
			f.NativeSeverity.Ordinal,
			itoaOrEmpty(f.NativeSeverity.Likelihood),
			itoaOrEmpty(f.NativeSeverity.Impact),
			strings.Join(components, "|"),
			itoaOrEmpty(f.NativeSeverity.ScaleMax),
			cvss,
			string(f.Status),
			strings.Join(f.Mitigations, "|"),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func itoaOrEmpty(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
