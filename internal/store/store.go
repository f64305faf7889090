// Package store defines the persistence interfaces for telemetry rows.
// Implementations live in subpackages (postgres for production, memory for
// tests and dry runs), keeping the engines storage-agnostic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hirepath/searchpulse/internal/telemetry"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// MetricStore persists and queries the per-day dimension rows.
type MetricStore interface {
	// Upserts are keyed by each row's declared unique identity; re-running
	// with identical inputs is an update that changes nothing.
	UpsertPageMetrics(ctx context.Context, rows []telemetry.DailyPageMetric) error
	UpsertQueryMetrics(ctx context.Context, rows []telemetry.DailyQueryMetric) error
	UpsertDeviceMetrics(ctx context.Context, rows []telemetry.DailyDeviceMetric) error

	// UpsertPageQueryMetrics writes one bounded batch; callers chunk the
	// full report to cap transaction size.
	UpsertPageQueryMetrics(ctx context.Context, rows []telemetry.DailyPageQueryMetric) error

	// TopPagesByClicks returns the date's page rows ordered by clicks
	// descending, capped at limit.
	TopPagesByClicks(ctx context.Context, date time.Time, limit int) ([]telemetry.DailyPageMetric, error)

	// PageHistory returns, per page, the rows with start <= date < end.
	PageHistory(ctx context.Context, pages []string, start, end time.Time) (map[string][]telemetry.DailyPageMetric, error)

	// DistinctPages returns every page ever recorded, sorted ascending.
	DistinctPages(ctx context.Context) ([]string, error)

	// PagesWithTraffic returns the distinct pages with at least one click
	// in the range start <= date < end, sorted ascending.
	PagesWithTraffic(ctx context.Context, start, end time.Time) ([]string, error)
}

// SummaryStore persists the per-date site summaries.
type SummaryStore interface {
	UpsertSummary(ctx context.Context, s telemetry.SiteDailySummary) error

	// Summary returns the summary for a date or ErrNotFound.
	Summary(ctx context.Context, date time.Time) (telemetry.SiteDailySummary, error)

	// SummaryExists reports whether a date has been ingested.
	SummaryExists(ctx context.Context, date time.Time) (bool, error)

	// SummariesInRange returns summaries with start <= date < end, ordered
	// by date ascending.
	SummariesInRange(ctx context.Context, start, end time.Time) ([]telemetry.SiteDailySummary, error)
}

// AlertStore persists detected anomalies. A date's alert set is replaced by
// delete-then-insert, never merged.
type AlertStore interface {
	DeleteAlertsForDate(ctx context.Context, date time.Time) error
	InsertAlerts(ctx context.Context, alerts []telemetry.Alert) error
	AlertsForDate(ctx context.Context, date time.Time) ([]telemetry.Alert, error)
}

// InspectionStore persists URL inspection outcomes.
type InspectionStore interface {
	UpsertInspection(ctx context.Context, ins telemetry.UrlInspection) error

	// RecentlyInspectedPages returns distinct pages inspected at or after
	// since.
	RecentlyInspectedPages(ctx context.Context, since time.Time) ([]string, error)

	// OldestInspectedPages returns distinct pages ordered by their most
	// recent inspection ascending (ties broken by page), capped at limit.
	OldestInspectedPages(ctx context.Context, limit int) ([]string, error)
}

// SitemapStore persists submitted-sitemap counters.
type SitemapStore interface {
	UpsertSitemapStatus(ctx context.Context, s telemetry.SitemapStatus) error
}

// Store combines every persistence concern served by one backend.
type Store interface {
	MetricStore
	SummaryStore
	AlertStore
	InspectionStore
	SitemapStore
}
