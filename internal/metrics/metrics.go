// Package metrics exposes Prometheus collectors for the telemetry pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsSavedTotal         *prometheus.CounterVec
	alertsTotal            *prometheus.CounterVec
	inspectionsTotal       *prometheus.CounterVec
	providerRequestSeconds *prometheus.HistogramVec
	runsTotal              *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		rowsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchpulse_rows_saved_total",
				Help: "Total number of metric rows saved, labeled by dimension.",
			},
			[]string{"dimension"},
		)

		alertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchpulse_alerts_total",
				Help: "Total number of alerts emitted, labeled by severity and category.",
			},
			[]string{"severity", "category"},
		)

		inspectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchpulse_inspections_total",
				Help: "Total number of URL inspections performed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		providerRequestSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchpulse_provider_request_seconds",
				Help:    "Duration of external provider requests, labeled by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchpulse_runs_total",
				Help: "Total number of pipeline runs, labeled by result.",
			},
			[]string{"result"},
		)
	})
}

// RowsSaved counts metric rows written for a dimension.
func RowsSaved(dimension string, n int) {
	if rowsSavedTotal == nil {
		return
	}
	rowsSavedTotal.WithLabelValues(dimension).Add(float64(n))
}

// AlertEmitted counts one emitted alert.
func AlertEmitted(severity, category string) {
	if alertsTotal == nil {
		return
	}
	alertsTotal.WithLabelValues(severity, category).Inc()
}

// InspectionDone counts one inspection call by outcome.
func InspectionDone(outcome string) {
	if inspectionsTotal == nil {
		return
	}
	inspectionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProviderRequest records one provider request duration.
func ObserveProviderRequest(operation string, d time.Duration) {
	if providerRequestSeconds == nil {
		return
	}
	providerRequestSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// RunFinished counts one pipeline run by result ("ok" or "error").
func RunFinished(result string) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(result).Inc()
}
