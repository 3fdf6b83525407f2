package domain

import "time"

// ReportData aggregates everything needed for the executive synthesis report.
type ReportData struct {
	GeneratedAt time.Time
	GeneratedBy string // Username
	ProjectName string
	Result      SynthesisResult
	Stats       ReportStats
}

// ReportStats holds summary statistics over one synthesis snapshot.
type ReportStats struct {
	TotalFindings    int
	ScoredFindings   int
	ExcludedFindings int
	GapCount         int
	RedundancyCount  int
	MeanRisk         float64

	// Per-framework finding counts.
	FrameworkBreakdown map[Framework]int

	// Finding counts per mitigation status.
	StatusBreakdown map[FindingStatus]int
}

// BuildReportStats derives report statistics from a synthesis result.
func BuildReportStats(r SynthesisResult) ReportStats {
	stats := ReportStats{
		TotalFindings:      len(r.Findings),
		ExcludedFindings:   len(r.ExcludedFindings),
		GapCount:           len(r.Gaps),
		RedundancyCount:    len(r.Redundancies),
		FrameworkBreakdown: make(map[Framework]int),
		StatusBreakdown:    make(map[FindingStatus]int),
	}

	sum := 0
	for _, f := range r.Findings {
		stats.FrameworkBreakdown[f.SourceFramework]++
		stats.StatusBreakdown[f.Status]++
		if f.HasUnifiedRisk() {
			stats.ScoredFindings++
			sum += *f.UnifiedRisk
		}
	}
	if stats.ScoredFindings > 0 {
		stats.MeanRisk = float64(sum) / float64(stats.ScoredFindings)
	}
	return stats
}
