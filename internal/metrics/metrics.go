package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that produced a classification.
	OutcomeSuccess = "success"
	// OutcomeError labels analyses that failed (configuration or dependency issues).
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hrv",
			Name:      "analyses_total",
			Help:      "Total number of ECG window analyses, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hrv",
			Name:      "analysis_seconds",
			Help:      "Window analysis latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	streamWindowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hrv",
			Name:      "stream_windows_total",
			Help:      "Sliding windows analyzed from the live stream, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	archiveFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hrv",
			Name:      "archive_fetches_total",
			Help:      "Segment fetches against the signal archive, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	exportRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hrv",
			Name:      "export_rows_total",
			Help:      "Feature rows appended to the parquet dataset.",
		},
	)
)

// Register attaches the hrv collectors to the supplied Prometheus
// registerer. Double registration is tolerated so tests and multiple
// binaries can share the default registry.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		streamWindowsTotal,
		archiveFetchesTotal,
		exportRowsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records a window analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// IncStreamWindow counts one live-stream window by outcome.
func IncStreamWindow(outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	streamWindowsTotal.WithLabelValues(label).Inc()
}

// IncArchiveFetch counts one archive segment fetch by outcome.
func IncArchiveFetch(outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	archiveFetchesTotal.WithLabelValues(label).Inc()
}

// AddExportRows counts rows appended to the feature dataset.
func AddExportRows(n int) {
	if n > 0 {
		exportRowsTotal.Add(float64(n))
	}
}
