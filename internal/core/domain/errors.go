package domain

import "fmt"

// IssueSeverity grades an import validation issue.
type IssueSeverity string

const (
	IssueWarning IssueSeverity = "warning"
	IssueError   IssueSeverity = "error"
)

// ValidationIssue is one itemized problem found while transforming adapter
// input. Issues never abort an import; affected records are skipped and the
// rest proceed (partial success is the default).
type ValidationIssue struct {
	Record   int           `json:"record"` // zero-based index in the source
	Field    string        `json:"field,omitempty"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// ReportStatus summarizes an import validation report.
type ReportStatus string

const (
	ReportValid    ReportStatus = "valid"
	ReportWarnings ReportStatus = "warnings"
	ReportErrors   ReportStatus = "errors"
)

// ValidationReport is the structured outcome every adapter returns alongside
// its records.
type ValidationReport struct {
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// AddError records a per-record error; the record is skipped, not the import.
func (r *ValidationReport) AddError(record int, field, message string) {
	r.Issues = append(r.Issues, ValidationIssue{Record: record, Field: field, Message: message, Severity: IssueError})
}

// AddWarning records a non-fatal issue on an imported record.
func (r *ValidationReport) AddWarning(record int, field, message string) {
	r.Issues = append(r.Issues, ValidationIssue{Record: record, Field: field, Message: message, Severity: IssueWarning})
}

// Status reports the overall validation outcome.
func (r ValidationReport) Status() ReportStatus {
	status := ReportValid
	for _, issue := range r.Issues {
		if issue.Severity == IssueError {
			return ReportErrors
		}
		status = ReportWarnings
	}
	return status
}

// UnknownScaleError is returned when the normalizer cannot map a native
// severity. The finding is excluded from aggregates until remapped; it is
// never silently given a default score.
type UnknownScaleError struct {
	FindingID string
	Scale     SeverityScale
	Detail    string
}

func (e *UnknownScaleError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("finding %s: unknown severity scale %q: %s", e.FindingID, e.Scale, e.Detail)
	}
	return fmt.Sprintf("finding %s: unknown severity scale %q", e.FindingID, e.Scale)
}

// StorageError is fatal for a synthesis run: it aborts the run, preserves
// the prior result, and surfaces the stage that failed.
type StorageError struct {
	Stage string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Stage, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
