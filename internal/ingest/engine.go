// Package ingest pulls one day's dimension-sliced analytics reports and
// persists them as the daily time series plus a derived site summary.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hirepath/searchpulse/internal/archive"
	"github.com/hirepath/searchpulse/internal/metrics"
	"github.com/hirepath/searchpulse/internal/searchconsole"
	"github.com/hirepath/searchpulse/internal/store"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

// PageQueryBatchSize bounds the per-batch write size for the combined
// page x query report, which is by far the widest of the four.
const PageQueryBatchSize = 100

// Config controls Engine behavior.
type Config struct {
	SiteURL       string
	RowLimit      int
	ArchivePrefix string
}

// Result reports what one ingestion run did.
type Result struct {
	Skipped bool
	Pages   int
	Queries int
}

// Engine ingests one target date per call.
type Engine struct {
	analytics searchconsole.AnalyticsProvider
	metrics   store.MetricStore
	summaries store.SummaryStore
	archiver  archive.Archiver
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Engine.
func New(
	analytics searchconsole.AnalyticsProvider,
	metricStore store.MetricStore,
	summaryStore store.SummaryStore,
	archiver archive.Archiver,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if archiver == nil {
		archiver = archive.NoOp{}
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = searchconsole.DefaultRowLimit
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "reports"
	}
	return &Engine{
		analytics: analytics,
		metrics:   metricStore,
		summaries: summaryStore,
		archiver:  archiver,
		cfg:       cfg,
		logger:    logger,
	}
}

// report identifies one of the four dimension slices fetched per day.
type report struct {
	name       string
	dimensions []string
}

var reports = []report{
	{name: "page", dimensions: []string{searchconsole.DimensionPage}},
	{name: "query", dimensions: []string{searchconsole.DimensionQuery}},
	{name: "device", dimensions: []string{searchconsole.DimensionDevice}},
	{name: "page_query", dimensions: []string{searchconsole.DimensionPage, searchconsole.DimensionQuery}},
}

// Ingest pulls and persists one day. The presence of a site summary for the
// date marks it as already ingested; in that case nothing is fetched or
// written and the result is Skipped. Any of the four fetches failing aborts
// the whole ingestion before a single row is written, because a summary
// derived from partial dimensions would be inconsistent.
func (e *Engine) Ingest(ctx context.Context, date time.Time) (Result, error) {
	date = telemetry.Day(date)

	exists, err := e.summaries.SummaryExists(ctx, date)
	if err != nil {
		return Result{}, fmt.Errorf("check summary existence: %w", err)
	}
	if exists {
		e.logger.Info("date already ingested, skipping",
			zap.String("date", telemetry.DayString(date)))
		return Result{Skipped: true}, nil
	}

	fetched, err := e.fetchAll(ctx, date)
	if err != nil {
		return Result{}, err
	}
	e.archiveReports(ctx, date, fetched)

	pageRows := e.pageMetrics(date, fetched["page"])
	queryRows := queryMetrics(date, fetched["query"])
	deviceRows := deviceMetrics(date, fetched["device"])
	pageQueryRows := e.pageQueryMetrics(date, fetched["page_query"])

	if err := e.metrics.UpsertPageMetrics(ctx, pageRows); err != nil {
		return Result{}, fmt.Errorf("save page metrics: %w", err)
	}
	metrics.RowsSaved("page", len(pageRows))

	if err := e.metrics.UpsertQueryMetrics(ctx, queryRows); err != nil {
		return Result{}, fmt.Errorf("save query metrics: %w", err)
	}
	metrics.RowsSaved("query", len(queryRows))

	if err := e.metrics.UpsertDeviceMetrics(ctx, deviceRows); err != nil {
		return Result{}, fmt.Errorf("save device metrics: %w", err)
	}
	metrics.RowsSaved("device", len(deviceRows))

	for start := 0; start < len(pageQueryRows); start += PageQueryBatchSize {
		end := min(start+PageQueryBatchSize, len(pageQueryRows))
		if err := e.metrics.UpsertPageQueryMetrics(ctx, pageQueryRows[start:end]); err != nil {
			return Result{}, fmt.Errorf("save page query metrics batch: %w", err)
		}
	}
	metrics.RowsSaved("page_query", len(pageQueryRows))

	summary := buildSummary(date, pageRows, queryRows, deviceRows)
	if err := e.summaries.UpsertSummary(ctx, summary); err != nil {
		return Result{}, fmt.Errorf("save site summary: %w", err)
	}

	e.logger.Info("ingested date",
		zap.String("date", telemetry.DayString(date)),
		zap.Int("pages", len(pageRows)),
		zap.Int("queries", len(queryRows)),
		zap.Int("page_queries", len(pageQueryRows)),
	)
	return Result{Pages: len(pageRows), Queries: len(queryRows)}, nil
}

// fetchAll runs the four dimension fetches concurrently and joins them.
// All must succeed.
func (e *Engine) fetchAll(ctx context.Context, date time.Time) (map[string][]searchconsole.Row, error) {
	type outcome struct {
		name string
		rows []searchconsole.Row
		err  error
	}

	results := make(chan outcome, len(reports))
	var wg sync.WaitGroup
	for _, r := range reports {
		wg.Add(1)
		go func(r report) {
			defer wg.Done()
			started := time.Now()
			rows, err := e.analytics.Query(ctx, date, date, r.dimensions, e.cfg.RowLimit)
			metrics.ObserveProviderRequest("query_"+r.name, time.Since(started))
			results <- outcome{name: r.name, rows: rows, err: err}
		}(r)
	}
	wg.Wait()
	close(results)

	fetched := make(map[string][]searchconsole.Row, len(reports))
	for out := range results {
		if out.err != nil {
			return nil, fmt.Errorf("fetch %s report: %w", out.name, out.err)
		}
		fetched[out.name] = out.rows
	}
	return fetched, nil
}

// archiveReports stores the raw rows as JSON blobs. Archive failures are
// logged but do not abort ingestion; the normalized rows are the system of
// record.
func (e *Engine) archiveReports(ctx context.Context, date time.Time, fetched map[string][]searchconsole.Row) {
	for name, rows := range fetched {
		data, err := json.Marshal(rows)
		if err != nil {
			e.logger.Warn("marshal raw report failed", zap.String("report", name), zap.Error(err))
			continue
		}
		path := fmt.Sprintf("%s/%s/%s.json", e.cfg.ArchivePrefix, telemetry.DayString(date), name)
		if _, err := e.archiver.Put(ctx, path, "application/json", bytes.NewReader(data)); err != nil {
			e.logger.Warn("archive raw report failed", zap.String("report", name), zap.Error(err))
		}
	}
}

// NormalizePage converts an absolute page URL to a site-relative path. A URL
// that does not parse is kept verbatim rather than dropped, so a malformed
// provider row still lands somewhere visible.
func NormalizePage(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

func (e *Engine) pageMetrics(date time.Time, rows []searchconsole.Row) []telemetry.DailyPageMetric {
	out := make([]telemetry.DailyPageMetric, 0, len(rows))
	for _, r := range rows {
		if len(r.Keys) < 1 {
			continue
		}
		out = append(out, telemetry.DailyPageMetric{
			Date:        date,
			Page:        NormalizePage(r.Keys[0]),
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			CTR:         r.CTR,
			Position:    r.Position,
		})
	}
	return out
}

func queryMetrics(date time.Time, rows []searchconsole.Row) []telemetry.DailyQueryMetric {
	out := make([]telemetry.DailyQueryMetric, 0, len(rows))
	for _, r := range rows {
		if len(r.Keys) < 1 {
			continue
		}
		out = append(out, telemetry.DailyQueryMetric{
			Date:        date,
			Query:       r.Keys[0],
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			CTR:         r.CTR,
			Position:    r.Position,
		})
	}
	return out
}

func deviceMetrics(date time.Time, rows []searchconsole.Row) []telemetry.DailyDeviceMetric {
	out := make([]telemetry.DailyDeviceMetric, 0, len(rows))
	for _, r := range rows {
		if len(r.Keys) < 1 {
			continue
		}
		out = append(out, telemetry.DailyDeviceMetric{
			Date:        date,
			Device:      strings.ToUpper(r.Keys[0]),
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			CTR:         r.CTR,
			Position:    r.Position,
		})
	}
	return out
}

func (e *Engine) pageQueryMetrics(date time.Time, rows []searchconsole.Row) []telemetry.DailyPageQueryMetric {
	out := make([]telemetry.DailyPageQueryMetric, 0, len(rows))
	for _, r := range rows {
		if len(r.Keys) < 2 {
			continue
		}
		out = append(out, telemetry.DailyPageQueryMetric{
			Date:        date,
			Page:        NormalizePage(r.Keys[0]),
			Query:       r.Keys[1],
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			CTR:         r.CTR,
			Position:    r.Position,
		})
	}
	return out
}

// buildSummary derives the site summary strictly from the page rows, with
// the device breakdown copied from the device rows rather than recomputed.
func buildSummary(
	date time.Time,
	pageRows []telemetry.DailyPageMetric,
	queryRows []telemetry.DailyQueryMetric,
	deviceRows []telemetry.DailyDeviceMetric,
) telemetry.SiteDailySummary {
	sum := telemetry.SiteDailySummary{
		Date:         date,
		TotalPages:   len(pageRows),
		TotalQueries: len(queryRows),
	}

	var positionTotal float64
	for _, r := range pageRows {
		sum.TotalClicks += r.Clicks
		sum.TotalImpressions += r.Impressions
		positionTotal += r.Position
	}
	if sum.TotalImpressions > 0 {
		sum.AvgCTR = float64(sum.TotalClicks) / float64(sum.TotalImpressions)
	}
	if len(pageRows) > 0 {
		sum.AvgPosition = positionTotal / float64(len(pageRows))
	}

	for _, r := range deviceRows {
		switch r.Device {
		case telemetry.DeviceMobile:
			sum.MobileClicks = r.Clicks
			sum.MobileImpressions = r.Impressions
		case telemetry.DeviceDesktop:
			sum.DesktopClicks = r.Clicks
			sum.DesktopImpressions = r.Impressions
		}
	}
	return sum
}
