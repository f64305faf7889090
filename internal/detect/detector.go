// Package detect computes rolling baselines over the stored summaries and
// page rows and regenerates the alert set for a date.
package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hirepath/searchpulse/internal/metrics"
	"github.com/hirepath/searchpulse/internal/store"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

// Default thresholds. They mirror the values the alerting rules were tuned
// with in production; the surrounding config can override them but should
// not invent new ones.
const (
	DefaultHistoryDays    = 28
	DefaultBaselineDays   = 7
	DefaultMinHistoryDays = 5
	DefaultTopPages       = 200

	DefaultSiteDropCriticalPct = -30.0
	DefaultSiteDropWarningPct  = -15.0
	DefaultSiteSurgePct        = 50.0

	DefaultPageDropPct        = -50.0
	DefaultPageSurgePct       = 100.0
	DefaultNoiseFloorClicks   = 2.0
	DefaultLossFloorClicks    = 5.0
	DefaultPositionDelta      = 5.0
	DefaultPositionRankCap    = 20.0
	DefaultPageSurgeMinClicks = 5
)

// Config carries the detector thresholds.
type Config struct {
	HistoryDays         int
	BaselineDays        int
	MinHistoryDays      int
	TopPages            int
	SiteDropCriticalPct float64
	SiteDropWarningPct  float64
	SiteSurgePct        float64
	PageDropPct         float64
	PageSurgePct        float64
	NoiseFloorClicks    float64
	LossFloorClicks     float64
	PositionDelta       float64
	PositionRankCap     float64
	PageSurgeMinClicks  int64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		HistoryDays:         DefaultHistoryDays,
		BaselineDays:        DefaultBaselineDays,
		MinHistoryDays:      DefaultMinHistoryDays,
		TopPages:            DefaultTopPages,
		SiteDropCriticalPct: DefaultSiteDropCriticalPct,
		SiteDropWarningPct:  DefaultSiteDropWarningPct,
		SiteSurgePct:        DefaultSiteSurgePct,
		PageDropPct:         DefaultPageDropPct,
		PageSurgePct:        DefaultPageSurgePct,
		NoiseFloorClicks:    DefaultNoiseFloorClicks,
		LossFloorClicks:     DefaultLossFloorClicks,
		PositionDelta:       DefaultPositionDelta,
		PositionRankCap:     DefaultPositionRankCap,
		PageSurgeMinClicks:  DefaultPageSurgeMinClicks,
	}
}

// Detector regenerates the alert set for a date.
type Detector struct {
	summaries store.SummaryStore
	metrics   store.MetricStore
	alerts    store.AlertStore
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Detector. Zero config fields fall back to the defaults.
func New(
	summaryStore store.SummaryStore,
	metricStore store.MetricStore,
	alertStore store.AlertStore,
	cfg Config,
	logger *zap.Logger,
) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.HistoryDays == 0 {
		cfg.HistoryDays = def.HistoryDays
	}
	if cfg.BaselineDays == 0 {
		cfg.BaselineDays = def.BaselineDays
	}
	if cfg.MinHistoryDays == 0 {
		cfg.MinHistoryDays = def.MinHistoryDays
	}
	if cfg.TopPages == 0 {
		cfg.TopPages = def.TopPages
	}
	if cfg.SiteDropCriticalPct == 0 {
		cfg.SiteDropCriticalPct = def.SiteDropCriticalPct
	}
	if cfg.SiteDropWarningPct == 0 {
		cfg.SiteDropWarningPct = def.SiteDropWarningPct
	}
	if cfg.SiteSurgePct == 0 {
		cfg.SiteSurgePct = def.SiteSurgePct
	}
	if cfg.PageDropPct == 0 {
		cfg.PageDropPct = def.PageDropPct
	}
	if cfg.PageSurgePct == 0 {
		cfg.PageSurgePct = def.PageSurgePct
	}
	if cfg.NoiseFloorClicks == 0 {
		cfg.NoiseFloorClicks = def.NoiseFloorClicks
	}
	if cfg.LossFloorClicks == 0 {
		cfg.LossFloorClicks = def.LossFloorClicks
	}
	if cfg.PositionDelta == 0 {
		cfg.PositionDelta = def.PositionDelta
	}
	if cfg.PositionRankCap == 0 {
		cfg.PositionRankCap = def.PositionRankCap
	}
	if cfg.PageSurgeMinClicks == 0 {
		cfg.PageSurgeMinClicks = def.PageSurgeMinClicks
	}
	return &Detector{
		summaries: summaryStore,
		metrics:   metricStore,
		alerts:    alertStore,
		cfg:       cfg,
		logger:    logger,
	}
}

// Detect regenerates the alert set for the date and returns the alert count.
// Too little history is a quiet no-op, not an error; storage failures are
// fatal because a partial alert set would be misleading.
func (d *Detector) Detect(ctx context.Context, date time.Time) (int, error) {
	date = telemetry.Day(date)

	today, err := d.summaries.Summary(ctx, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.logger.Info("insufficient history: no summary for date",
				zap.String("date", telemetry.DayString(date)))
			return 0, nil
		}
		return 0, fmt.Errorf("load summary: %w", err)
	}

	historyStart := date.AddDate(0, 0, -d.cfg.HistoryDays)
	history, err := d.summaries.SummariesInRange(ctx, historyStart, date)
	if err != nil {
		return 0, fmt.Errorf("load summary history: %w", err)
	}
	if len(history) < d.cfg.MinHistoryDays {
		d.logger.Info("insufficient history: too few prior summaries",
			zap.String("date", telemetry.DayString(date)),
			zap.Int("have", len(history)),
			zap.Int("need", d.cfg.MinHistoryDays))
		return 0, nil
	}

	// Regenerate, never accumulate.
	if err := d.alerts.DeleteAlertsForDate(ctx, date); err != nil {
		return 0, fmt.Errorf("clear previous alerts: %w", err)
	}

	alerts := d.siteAlerts(date, today, history)

	pageAlerts, err := d.pageAlerts(ctx, date)
	if err != nil {
		return 0, err
	}
	alerts = append(alerts, pageAlerts...)

	if err := d.alerts.InsertAlerts(ctx, alerts); err != nil {
		return 0, fmt.Errorf("save alerts: %w", err)
	}
	for _, a := range alerts {
		metrics.AlertEmitted(string(a.Severity), string(a.Category))
	}

	d.logger.Info("anomaly detection complete",
		zap.String("date", telemetry.DayString(date)),
		zap.Int("alerts", len(alerts)))
	return len(alerts), nil
}

// baselines computes the short and long rolling means of a summary metric.
// The 28-day mean is descriptive context only; thresholds compare against
// the 7-day mean.
func (d *Detector) baselines(history []telemetry.SiteDailySummary, value func(telemetry.SiteDailySummary) int64) (short, long float64) {
	if len(history) == 0 {
		return 0, 0
	}
	var longTotal float64
	for _, s := range history {
		longTotal += float64(value(s))
	}
	long = longTotal / float64(len(history))

	n := d.cfg.BaselineDays
	if n > len(history) {
		n = len(history)
	}
	var shortTotal float64
	for _, s := range history[len(history)-n:] {
		shortTotal += float64(value(s))
	}
	short = shortTotal / float64(n)
	return short, long
}

func (d *Detector) siteAlerts(date time.Time, today telemetry.SiteDailySummary, history []telemetry.SiteDailySummary) []telemetry.Alert {
	var alerts []telemetry.Alert

	clicksBase, clicksBase28 := d.baselines(history, func(s telemetry.SiteDailySummary) int64 { return s.TotalClicks })
	if clicksBase > 0 {
		change := pctChange(float64(today.TotalClicks), clicksBase)
		switch {
		case change < d.cfg.SiteDropCriticalPct:
			alerts = append(alerts, siteAlert(date, telemetry.SeverityCritical, telemetry.CategoryClicksDrop,
				"Site clicks dropped sharply", "clicks", float64(today.TotalClicks), clicksBase, change, clicksBase28))
		case change < d.cfg.SiteDropWarningPct:
			alerts = append(alerts, siteAlert(date, telemetry.SeverityWarning, telemetry.CategoryClicksDrop,
				"Site clicks below baseline", "clicks", float64(today.TotalClicks), clicksBase, change, clicksBase28))
		case change > d.cfg.SiteSurgePct:
			alerts = append(alerts, siteAlert(date, telemetry.SeverityInfo, telemetry.CategoryNewWinner,
				"Site clicks surged", "clicks", float64(today.TotalClicks), clicksBase, change, clicksBase28))
		}
	}

	imprBase, imprBase28 := d.baselines(history, func(s telemetry.SiteDailySummary) int64 { return s.TotalImpressions })
	if imprBase > 0 {
		change := pctChange(float64(today.TotalImpressions), imprBase)
		// Impression surges are deliberately not alerted.
		switch {
		case change < d.cfg.SiteDropCriticalPct:
			alerts = append(alerts, siteAlert(date, telemetry.SeverityCritical, telemetry.CategoryImpressionsDrop,
				"Site impressions dropped sharply", "impressions", float64(today.TotalImpressions), imprBase, change, imprBase28))
		case change < d.cfg.SiteDropWarningPct:
			alerts = append(alerts, siteAlert(date, telemetry.SeverityWarning, telemetry.CategoryImpressionsDrop,
				"Site impressions below baseline", "impressions", float64(today.TotalImpressions), imprBase, change, imprBase28))
		}
	}

	return alerts
}

func (d *Detector) pageAlerts(ctx context.Context, date time.Time) ([]telemetry.Alert, error) {
	topPages, err := d.metrics.TopPagesByClicks(ctx, date, d.cfg.TopPages)
	if err != nil {
		return nil, fmt.Errorf("load top pages: %w", err)
	}
	if len(topPages) == 0 {
		return nil, nil
	}

	pages := make([]string, 0, len(topPages))
	for _, p := range topPages {
		pages = append(pages, p.Page)
	}
	histStart := date.AddDate(0, 0, -d.cfg.BaselineDays)
	histories, err := d.metrics.PageHistory(ctx, pages, histStart, date)
	if err != nil {
		return nil, fmt.Errorf("load page histories: %w", err)
	}

	var alerts []telemetry.Alert
	for _, today := range topPages {
		hist := histories[today.Page]
		if len(hist) < 3 {
			continue
		}

		var clicksTotal, posTotal float64
		for _, h := range hist {
			clicksTotal += float64(h.Clicks)
			posTotal += h.Position
		}
		baseClicks := clicksTotal / float64(len(hist))
		basePosition := posTotal / float64(len(hist))
		if baseClicks < d.cfg.NoiseFloorClicks {
			continue
		}

		change := pctChange(float64(today.Clicks), baseClicks)
		switch {
		case change < d.cfg.PageDropPct && baseClicks >= d.cfg.LossFloorClicks:
			alerts = append(alerts, pageAlert(date, telemetry.SeverityWarning, telemetry.CategoryClicksDrop,
				"Page clicks dropped", "clicks", today.Page, float64(today.Clicks), baseClicks, change))
		case change > d.cfg.PageSurgePct && today.Clicks >= d.cfg.PageSurgeMinClicks:
			alerts = append(alerts, pageAlert(date, telemetry.SeverityInfo, telemetry.CategoryNewWinner,
				"Page clicks surged", "clicks", today.Page, float64(today.Clicks), baseClicks, change))
		}

		positionDelta := today.Position - basePosition
		if positionDelta > d.cfg.PositionDelta && basePosition < d.cfg.PositionRankCap {
			alerts = append(alerts, telemetry.Alert{
				Date:     date,
				Severity: telemetry.SeverityWarning,
				Category: telemetry.CategoryPositionChange,
				Title:    "Page ranking regressed",
				Description: fmt.Sprintf("%s slipped from average position %.1f to %.1f (delta %.1f)",
					today.Page, basePosition, today.Position, positionDelta),
				Metric:        "position",
				EntityType:    telemetry.EntityPage,
				Entity:        today.Page,
				CurrentValue:  today.Position,
				PreviousValue: basePosition,
				ChangePercent: positionDelta,
			})
		}
	}
	return alerts, nil
}

func pctChange(current, baseline float64) float64 {
	return (current - baseline) / baseline * 100
}

func siteAlert(date time.Time, sev telemetry.Severity, cat telemetry.Category, title, metric string, current, baseline, change, baseline28 float64) telemetry.Alert {
	return telemetry.Alert{
		Date:     date,
		Severity: sev,
		Category: cat,
		Title:    title,
		Description: fmt.Sprintf("Site %s at %.0f vs 7-day baseline %.1f (%+.1f%%); 28-day baseline %.1f",
			metric, current, baseline, change, baseline28),
		Metric:        metric,
		EntityType:    telemetry.EntitySite,
		CurrentValue:  current,
		PreviousValue: baseline,
		ChangePercent: change,
	}
}

func pageAlert(date time.Time, sev telemetry.Severity, cat telemetry.Category, title, metric, page string, current, baseline, change float64) telemetry.Alert {
	return telemetry.Alert{
		Date:     date,
		Severity: sev,
		Category: cat,
		Title:    title,
		Description: fmt.Sprintf("%s %s at %.0f vs 7-day baseline %.1f (%+.1f%%)",
			page, metric, current, baseline, change),
		Metric:        metric,
		EntityType:    telemetry.EntityPage,
		Entity:        page,
		CurrentValue:  current,
		PreviousValue: baseline,
		ChangePercent: change,
	}
}
