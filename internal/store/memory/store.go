// Package memory contains a map-backed store implementation used by unit
// tests and by runs configured without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hirepath/searchpulse/internal/store"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

type pageKey struct {
	date time.Time
	page string
}

type queryKey struct {
	date  time.Time
	query string
}

type deviceKey struct {
	date   time.Time
	device string
}

type pageQueryKey struct {
	date  time.Time
	page  string
	query string
}

type sitemapKey struct {
	date time.Time
	path string
}

// Store implements every store interface in memory. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	pages       map[pageKey]telemetry.DailyPageMetric
	queries     map[queryKey]telemetry.DailyQueryMetric
	devices     map[deviceKey]telemetry.DailyDeviceMetric
	pageQueries map[pageQueryKey]telemetry.DailyPageQueryMetric
	summaries   map[time.Time]telemetry.SiteDailySummary
	alerts      map[time.Time][]telemetry.Alert
	inspections map[pageKey]telemetry.UrlInspection
	sitemaps    map[sitemapKey]telemetry.SitemapStatus
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		pages:       make(map[pageKey]telemetry.DailyPageMetric),
		queries:     make(map[queryKey]telemetry.DailyQueryMetric),
		devices:     make(map[deviceKey]telemetry.DailyDeviceMetric),
		pageQueries: make(map[pageQueryKey]telemetry.DailyPageQueryMetric),
		summaries:   make(map[time.Time]telemetry.SiteDailySummary),
		alerts:      make(map[time.Time][]telemetry.Alert),
		inspections: make(map[pageKey]telemetry.UrlInspection),
		sitemaps:    make(map[sitemapKey]telemetry.SitemapStatus),
	}
}

// UpsertPageMetrics stores page rows keyed by (date, page).
func (s *Store) UpsertPageMetrics(_ context.Context, rows []telemetry.DailyPageMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		r.Date = telemetry.Day(r.Date)
		s.pages[pageKey{r.Date, r.Page}] = r
	}
	return nil
}

// UpsertQueryMetrics stores query rows keyed by (date, query).
func (s *Store) UpsertQueryMetrics(_ context.Context, rows []telemetry.DailyQueryMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		r.Date = telemetry.Day(r.Date)
		s.queries[queryKey{r.Date, r.Query}] = r
	}
	return nil
}

// UpsertDeviceMetrics stores device rows keyed by (date, device).
func (s *Store) UpsertDeviceMetrics(_ context.Context, rows []telemetry.DailyDeviceMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		r.Date = telemetry.Day(r.Date)
		s.devices[deviceKey{r.Date, r.Device}] = r
	}
	return nil
}

// UpsertPageQueryMetrics stores combined rows keyed by (date, page, query).
func (s *Store) UpsertPageQueryMetrics(_ context.Context, rows []telemetry.DailyPageQueryMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		r.Date = telemetry.Day(r.Date)
		s.pageQueries[pageQueryKey{r.Date, r.Page, r.Query}] = r
	}
	return nil
}

// TopPagesByClicks returns the date's page rows by clicks descending.
func (s *Store) TopPagesByClicks(_ context.Context, date time.Time, limit int) ([]telemetry.DailyPageMetric, error) {
	date = telemetry.Day(date)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []telemetry.DailyPageMetric
	for k, r := range s.pages {
		if k.date.Equal(date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].Page < out[j].Page
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PageHistory returns each page's rows with start <= date < end.
func (s *Store) PageHistory(_ context.Context, pages []string, start, end time.Time) (map[string][]telemetry.DailyPageMetric, error) {
	start, end = telemetry.Day(start), telemetry.Day(end)
	wanted := make(map[string]bool, len(pages))
	for _, p := range pages {
		wanted[p] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]telemetry.DailyPageMetric)
	for k, r := range s.pages {
		if wanted[k.page] && !k.date.Before(start) && k.date.Before(end) {
			out[k.page] = append(out[k.page], r)
		}
	}
	for p := range out {
		rows := out[p]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	}
	return out, nil
}

// DistinctPages returns every recorded page, sorted.
func (s *Store) DistinctPages(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for k := range s.pages {
		seen[k.page] = true
	}
	return sortedKeys(seen), nil
}

// PagesWithTraffic returns distinct pages with clicks in the range.
func (s *Store) PagesWithTraffic(_ context.Context, start, end time.Time) ([]string, error) {
	start, end = telemetry.Day(start), telemetry.Day(end)
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for k, r := range s.pages {
		if r.Clicks > 0 && !k.date.Before(start) && k.date.Before(end) {
			seen[k.page] = true
		}
	}
	return sortedKeys(seen), nil
}

// UpsertSummary stores the summary keyed by date.
func (s *Store) UpsertSummary(_ context.Context, sum telemetry.SiteDailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum.Date = telemetry.Day(sum.Date)
	s.summaries[sum.Date] = sum
	return nil
}

// Summary returns a date's summary or store.ErrNotFound.
func (s *Store) Summary(_ context.Context, date time.Time) (telemetry.SiteDailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[telemetry.Day(date)]
	if !ok {
		return telemetry.SiteDailySummary{}, store.ErrNotFound
	}
	return sum, nil
}

// SummaryExists reports whether a date was ingested.
func (s *Store) SummaryExists(_ context.Context, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.summaries[telemetry.Day(date)]
	return ok, nil
}

// SummariesInRange returns summaries with start <= date < end, date ascending.
func (s *Store) SummariesInRange(_ context.Context, start, end time.Time) ([]telemetry.SiteDailySummary, error) {
	start, end = telemetry.Day(start), telemetry.Day(end)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []telemetry.SiteDailySummary
	for d, sum := range s.summaries {
		if !d.Before(start) && d.Before(end) {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// DeleteAlertsForDate removes a date's alert set.
func (s *Store) DeleteAlertsForDate(_ context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, telemetry.Day(date))
	return nil
}

// InsertAlerts appends alerts under their dates.
func (s *Store) InsertAlerts(_ context.Context, alerts []telemetry.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alerts {
		a.Date = telemetry.Day(a.Date)
		s.alerts[a.Date] = append(s.alerts[a.Date], a)
	}
	return nil
}

// AlertsForDate returns a copy of a date's alerts.
func (s *Store) AlertsForDate(_ context.Context, date time.Time) ([]telemetry.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.alerts[telemetry.Day(date)]
	out := make([]telemetry.Alert, len(src))
	copy(out, src)
	return out, nil
}

// UpsertInspection stores an inspection keyed by (page, inspectedAt).
func (s *Store) UpsertInspection(_ context.Context, ins telemetry.UrlInspection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ins.InspectedAt = telemetry.Day(ins.InspectedAt)
	s.inspections[pageKey{ins.InspectedAt, ins.Page}] = ins
	return nil
}

// RecentlyInspectedPages returns distinct pages inspected at or after since.
func (s *Store) RecentlyInspectedPages(_ context.Context, since time.Time) ([]string, error) {
	since = telemetry.Day(since)
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for k := range s.inspections {
		if !k.date.Before(since) {
			seen[k.page] = true
		}
	}
	return sortedKeys(seen), nil
}

// OldestInspectedPages returns pages ordered by latest inspection ascending.
func (s *Store) OldestInspectedPages(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[string]time.Time)
	for k := range s.inspections {
		if cur, ok := latest[k.page]; !ok || k.date.After(cur) {
			latest[k.page] = k.date
		}
	}
	pages := sortedKeys(boolKeys(latest))
	sort.SliceStable(pages, func(i, j int) bool {
		return latest[pages[i]].Before(latest[pages[j]])
	})
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return pages, nil
}

// UpsertSitemapStatus stores a sitemap row keyed by (date, path).
func (s *Store) UpsertSitemapStatus(_ context.Context, st telemetry.SitemapStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Date = telemetry.Day(st.Date)
	s.sitemaps[sitemapKey{st.Date, st.Path}] = st
	return nil
}

// SitemapStatuses returns the stored sitemap rows for a date, sorted by path.
// Test helper.
func (s *Store) SitemapStatuses(date time.Time) []telemetry.SitemapStatus {
	date = telemetry.Day(date)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []telemetry.SitemapStatus
	for k, st := range s.sitemaps {
		if k.date.Equal(date) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Inspections returns the stored inspections for a date, sorted by page.
// Test helper.
func (s *Store) Inspections(date time.Time) []telemetry.UrlInspection {
	date = telemetry.Day(date)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []telemetry.UrlInspection
	for k, ins := range s.inspections {
		if k.date.Equal(date) {
			out = append(out, ins)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func boolKeys(m map[string]time.Time) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}
