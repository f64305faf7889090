package searchconsole

import (
	"context"
	"time"
)

// NoOpAnalytics is an AnalyticsProvider that returns no rows. It is useful
// for dry runs and for exercising the pipeline wiring without credentials.
type NoOpAnalytics struct{}

// Query for NoOpAnalytics returns an empty result set.
func (NoOpAnalytics) Query(_ context.Context, _, _ time.Time, _ []string, _ int) ([]Row, error) {
	return nil, nil
}

// NoOpInspector is an InspectionProvider that reports every URL as unknown
// and no submitted sitemaps.
type NoOpInspector struct{}

// Inspect for NoOpInspector returns an unknown verdict.
func (NoOpInspector) Inspect(_ context.Context, _ string) (InspectionResult, error) {
	return InspectionResult{Verdict: "unknown"}, nil
}

// ListSitemaps for NoOpInspector returns an empty list.
func (NoOpInspector) ListSitemaps(_ context.Context) ([]Sitemap, error) {
	return nil, nil
}
