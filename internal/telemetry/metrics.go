package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FindingsImported counts findings accepted per framework and adapter
	FindingsImported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskmap",
			Name:      "findings_imported_total",
			Help:      "Total number of findings accepted by import adapters",
		},
		[]string{"framework", "adapter"},
	)

	// ImportRecordsSkipped counts source records dropped during validation
	ImportRecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskmap",
			Name:      "import_records_skipped_total",
			Help:      "Total number of source records skipped by import validation",
		},
		[]string{"adapter"},
	)

	// SynthesisRuns counts synthesis runs by terminal outcome
	SynthesisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskmap",
			Name:      "synthesis_runs_total",
			Help:      "Total number of synthesis runs by outcome",
		},
		[]string{"outcome"},
	)

	// SynthesisDuration observes end-to-end run duration
	SynthesisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riskmap",
			Name:      "synthesis_duration_seconds",
			Help:      "Wall-clock duration of synthesis runs",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// EdgesProposed counts correlation edges proposed per run, by kind
	EdgesProposed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskmap",
			Name:      "correlation_edges_proposed_total",
			Help:      "Total number of correlation edges proposed by synthesis runs",
		},
		[]string{"kind"},
	)

	// FindingsExcluded counts findings excluded from aggregates per run
	FindingsExcluded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "riskmap",
			Name:      "findings_excluded_total",
			Help:      "Total number of findings excluded from aggregates by normalization",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		// Register metrics, ignoring errors if already registered
		// This prevents panics when metrics are already in the registry
		prometheus.DefaultRegisterer.Register(FindingsImported)
		prometheus.DefaultRegisterer.Register(ImportRecordsSkipped)
		prometheus.DefaultRegisterer.Register(SynthesisRuns)
		prometheus.DefaultRegisterer.Register(SynthesisDuration)
		prometheus.DefaultRegisterer.Register(EdgesProposed)
		prometheus.DefaultRegisterer.Register(FindingsExcluded)
	})
}
