// Package pipeline orchestrates one batch run: ingestion, then anomaly
// detection and sitemap sync in parallel, then the inspection rotation.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hirepath/searchpulse/internal/clock"
	"github.com/hirepath/searchpulse/internal/detect"
	"github.com/hirepath/searchpulse/internal/ingest"
	"github.com/hirepath/searchpulse/internal/inspect"
	"github.com/hirepath/searchpulse/internal/metrics"
	"github.com/hirepath/searchpulse/internal/publisher"
	"github.com/hirepath/searchpulse/internal/sitemaps"
	"github.com/hirepath/searchpulse/internal/store"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

// Config controls Runner behavior.
type Config struct {
	InspectionBudget    int
	FreshnessWindowDays int
	Topic               string
}

// Options tweak one run.
type Options struct {
	SkipInspections bool
}

// Runner wires the pipeline stages together.
type Runner struct {
	engine    *ingest.Engine
	detector  *detect.Detector
	syncer    *sitemaps.Syncer
	scheduler *inspect.Scheduler
	alerts    store.AlertStore
	events    publisher.Publisher
	clock     clock.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Runner.
func New(
	engine *ingest.Engine,
	detector *detect.Detector,
	syncer *sitemaps.Syncer,
	scheduler *inspect.Scheduler,
	alertStore store.AlertStore,
	events publisher.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = publisher.NoOp{}
	}
	return &Runner{
		engine:    engine,
		detector:  detector,
		syncer:    syncer,
		scheduler: scheduler,
		alerts:    alertStore,
		events:    events,
		clock:     clock.System{},
		cfg:       cfg,
		logger:    logger,
	}
}

// WithClock swaps the time source. Tests use it to pin run timestamps.
func (r *Runner) WithClock(c clock.Clock) *Runner {
	if c != nil {
		r.clock = c
	}
	return r
}

// Run executes all stages for one date. Fatal errors abort the remaining
// stages; reruns are safe because ingestion skips already-ingested dates.
func (r *Runner) Run(ctx context.Context, date time.Time, opts Options) (RunReport, error) {
	date = telemetry.Day(date)
	runID := uuid.NewString()
	logger := r.logger.With(
		zap.String("run_id", runID),
		zap.String("date", telemetry.DayString(date)),
	)
	started := r.clock.Now()
	report := RunReport{
		RunID:     runID,
		Date:      telemetry.DayString(date),
		StartedAt: started,
	}

	logger.Info("pipeline run starting")

	ingestRes, err := r.engine.Ingest(ctx, date)
	if err != nil {
		metrics.RunFinished("error")
		return report, fmt.Errorf("ingest %s: %w", telemetry.DayString(date), err)
	}
	report.Skipped = ingestRes.Skipped
	report.PagesSaved = ingestRes.Pages
	report.QueriesSaved = ingestRes.Queries

	// Detection and sitemap sync read disjoint state and can overlap.
	var wg sync.WaitGroup
	var alertCount, sitemapCount int
	var detectErr, syncErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		alertCount, detectErr = r.detector.Detect(ctx, date)
	}()
	go func() {
		defer wg.Done()
		sitemapCount, syncErr = r.syncer.Sync(ctx, date)
	}()
	wg.Wait()

	if detectErr != nil {
		metrics.RunFinished("error")
		return report, fmt.Errorf("detect %s: %w", telemetry.DayString(date), detectErr)
	}
	if syncErr != nil {
		metrics.RunFinished("error")
		return report, fmt.Errorf("sync sitemaps %s: %w", telemetry.DayString(date), syncErr)
	}
	report.AlertCount = alertCount
	report.Sitemaps = sitemapCount

	if opts.SkipInspections {
		report.InspectionsSkipped = true
		logger.Info("inspection rotation skipped by request")
	} else {
		rotateRes, err := r.scheduler.Rotate(ctx, date, r.cfg.InspectionBudget, r.cfg.FreshnessWindowDays)
		if err != nil {
			metrics.RunFinished("error")
			return report, fmt.Errorf("rotate inspections %s: %w", telemetry.DayString(date), err)
		}
		report.Inspected = rotateRes.Inspected
		report.IssuesFound = rotateRes.IssuesFound
		report.InspectionFailures = rotateRes.Failed
		report.FailedPages = rotateRes.FailedPages
	}

	if err := r.fillSeverityCounts(ctx, date, &report); err != nil {
		metrics.RunFinished("error")
		return report, err
	}

	report.Duration = r.clock.Now().Sub(started).Round(time.Millisecond).String()
	metrics.RunFinished("ok")
	logger.Info("pipeline run finished",
		zap.Bool("skipped_ingest", report.Skipped),
		zap.Int("pages", report.PagesSaved),
		zap.Int("queries", report.QueriesSaved),
		zap.Int("alerts", report.AlertCount),
		zap.Int("inspected", report.Inspected),
	)

	r.publishReport(ctx, logger, report)
	return report, nil
}

// RunBackfill processes a contiguous date range oldest-first, so each later
// date's baselines see the earlier days' summaries.
func (r *Runner) RunBackfill(ctx context.Context, end time.Time, priorDays int, opts Options) ([]RunReport, error) {
	var reports []RunReport
	for i := priorDays; i >= 0; i-- {
		date := telemetry.Day(end).AddDate(0, 0, -i)
		report, err := r.Run(ctx, date, opts)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// fillSeverityCounts reads back the date's final alert set, including any
// indexing alerts the rotation appended.
func (r *Runner) fillSeverityCounts(ctx context.Context, date time.Time, report *RunReport) error {
	alerts, err := r.alerts.AlertsForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("load alerts for report: %w", err)
	}
	report.AlertsBySeverity = make(map[string]int)
	for _, a := range alerts {
		report.AlertsBySeverity[string(a.Severity)]++
	}
	report.AlertCount = len(alerts)
	return nil
}

// publishReport emits the run summary. Publish failures are logged, not
// fatal; the run itself already succeeded.
func (r *Runner) publishReport(ctx context.Context, logger *zap.Logger, report RunReport) {
	if r.cfg.Topic == "" {
		return
	}
	if _, err := r.events.Publish(ctx, r.cfg.Topic, report); err != nil {
		logger.Warn("publish run report failed", zap.Error(err))
	}
}
