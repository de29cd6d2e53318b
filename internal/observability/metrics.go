package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wayback_news"

// Source outcome label values.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type Metrics struct {
	PipelineRuns      *prometheus.CounterVec
	SourceOutcomes    *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
	ArticlesExtracted *prometheus.CounterVec
	SnapshotDrift     prometheus.Histogram
}

// NewMetrics registers all metrics on reg (the default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome (ok, rejected, cancelled).",
		}, []string{"outcome"}),
		SourceOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "source_results_total",
			Help:      "Per-source results by outcome.",
		}, []string{"source", "outcome"}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of outbound archive calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		ArticlesExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "articles_extracted_total",
			Help:      "Articles extracted from snapshots.",
		}, []string{"source"}),
		SnapshotDrift: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_drift_seconds",
			Help:      "Absolute distance between requested and captured time.",
			Buckets:   []float64{60, 3600, 6 * 3600, 86400, 7 * 86400, 30 * 86400, 365 * 86400},
		}),
	}
}
