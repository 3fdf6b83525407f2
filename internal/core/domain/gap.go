package domain

// Gap describes a hazard, loss or critical control action with insufficient
// finding coverage across all imported frameworks. Gaps are derived during a
// synthesis run, never stored by hand.
type Gap struct {
	SubjectRef    string     `json:"subject_ref"`
	SubjectKind   EntityKind `json:"subject_kind"`
	SubjectName   string     `json:"subject_name"`
	CoverageCount int        `json:"coverage_count"`
	// SeverityOfUncovered is the worst-case ordinal severity if the gap is
	// exploited, taken from the subject entity's attributes when declared.
	SeverityOfUncovered string `json:"severity_of_uncovered,omitempty"`
	// SuggestedFrameworks lists methodologies that typically cover this
	// subject kind, as a starting point for closing the gap.
	SuggestedFrameworks []Framework `json:"suggested_frameworks,omitempty"`
}

// Redundancy is a group of findings from different frameworks judged to
// describe the same exposure. Groups are merge candidates for a human
// reviewer; the engine never auto-merges.
type Redundancy struct {
	FindingIDs []string    `json:"finding_ids"`
	Frameworks []Framework `json:"frameworks"`
	// Confidence is the lowest edge confidence inside the group; the group
	// is only as trustworthy as its weakest link.
	Confidence float64 `json:"confidence"`
}
