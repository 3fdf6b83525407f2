package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmtrigo/riskmap/internal/adapters/importers"
	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// ExportFindingsJSON writes findings and entities as the generic interchange
// envelope. The output re-imports through the generic-json adapter unchanged.
func ExportFindingsJSON(w io.Writer, findings []domain.Finding, entities []domain.Entity) error {
	data, err := importers.NewGenericJSONAdapter().Export(findings, entities)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ExportFindingsCSV writes findings in the generic CSV column layout. The
// output re-imports through the generic-csv adapter (entities are JSON-only).
func ExportFindingsCSV(w io.Writer, findings []domain.Finding) error {
	data, err := importers.NewGenericCSVAdapter().Export(findings, nil)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ExportResultJSON writes one immutable synthesis snapshot, aggregates and
// all. The same resultID always produces the same bytes.
func ExportResultJSON(w io.Writer, result domain.SynthesisResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// ExportGapsCSV writes the gap list of a snapshot as CSV for tracking
// spreadsheets.
func ExportGapsCSV(w io.Writer, gapList []domain.Gap) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := []string{"SubjectRef", "SubjectKind", "SubjectName", "CoverageCount", "SeverityOfUncovered", "SuggestedFrameworks"}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, g := range gapList {
		frameworks := ""
		for i, fw := range g.SuggestedFrameworks {
			if i > 0 {
				frameworks += "|"
			}
			frameworks += string(fw)
		}
		row := []string{
			g.SubjectRef,
			string(g.SubjectKind),
			g.SubjectName,
			fmt.Sprintf("%d", g.CoverageCount),
			g.SeverityOfUncovered,
			frameworks,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}
