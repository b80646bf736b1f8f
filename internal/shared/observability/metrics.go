package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relocate_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	FilesIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relocate_files_indexed_total",
		Help: "Total number of files added to the project index.",
	})

	ParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relocate_parse_failures_total",
		Help: "Total number of files excluded from the index because they failed to parse.",
	})

	UsagesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relocate_usages_resolved_total",
		Help: "Usage sites by resolution path.",
	}, []string{"path"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relocate_stage_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relocate_diagnostics_total",
		Help: "Diagnostics reported, by kind.",
	}, []string{"kind"})

	EditsPlannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relocate_edits_planned_total",
		Help: "Total number of text edits produced by the planner.",
	})

	FilesChanged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relocate_files_changed",
		Help: "Number of files whose content changed in the last run.",
	})
)

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
