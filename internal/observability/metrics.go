package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// summary refresh service.
type Metrics struct {
	RefreshRuns     *prometheus.CounterVec // labels: source={mysql,csv}, outcome={success,compute_error,persist_error}
	RefreshDuration prometheus.Histogram
	RefreshRunning  prometheus.Gauge
	LastRefreshTime prometheus.Gauge

	SummaryRows       prometheus.Gauge
	PartialDataErrors *prometheus.CounterVec // labels: entity={alerts,resources,distributions,rainfall}

	// Unmatched string-join diagnostics (see the domain package comment).
	UnmatchedResourceRows prometheus.Gauge
	UnmatchedAlertRows    prometheus.Gauge

	NotifyFailures prometheus.Counter
}

// NewMetrics creates and registers all refresh metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_summary",
			Name:      "refresh_runs_total",
			Help:      "Refresh attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "region_summary",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete compute-and-persist refresh cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "region_summary",
			Name:      "refresh_running",
			Help:      "1 while a refresh is in flight, 0 otherwise.",
		}),
		LastRefreshTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "region_summary",
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		SummaryRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "region_summary",
			Name:      "rows",
			Help:      "Row count of the last computed summary.",
		}),
		PartialDataErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_summary",
			Name:      "partial_data_errors_total",
			Help:      "Non-fatal base relation read failures by entity.",
		}, []string{"entity"}),
		UnmatchedResourceRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "region_summary",
			Name:      "unmatched_resource_rows",
			Help:      "Resource rows whose location matched no region_name in the last refresh.",
		}),
		UnmatchedAlertRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "region_summary",
			Name:      "unmatched_alert_rows",
			Help:      "Active alert rows whose region matched no region_name in the last refresh.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "region_summary",
			Name:      "notify_failures_total",
			Help:      "Refresh-completed notifications that could not be published.",
		}),
	}

	prometheus.MustRegister(
		m.RefreshRuns,
		m.RefreshDuration,
		m.RefreshRunning,
		m.LastRefreshTime,
		m.SummaryRows,
		m.PartialDataErrors,
		m.UnmatchedResourceRows,
		m.UnmatchedAlertRows,
		m.NotifyFailures,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RefreshRuns:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "region_summary", Name: "refresh_runs_total"}, []string{"source", "outcome"}),
		RefreshDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "region_summary", Name: "refresh_duration_seconds"}),
		RefreshRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "region_summary", Name: "refresh_running"}),
		LastRefreshTime:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "region_summary", Name: "last_refresh_timestamp_seconds"}),
		SummaryRows:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "region_summary", Name: "rows"}),
		PartialDataErrors:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "region_summary", Name: "partial_data_errors_total"}, []string{"entity"}),
		UnmatchedResourceRows: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "region_summary", Name: "unmatched_resource_rows"}),
		UnmatchedAlertRows:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "region_summary", Name: "unmatched_alert_rows"}),
		NotifyFailures:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "region_summary", Name: "notify_failures_total"}),
	}
}
