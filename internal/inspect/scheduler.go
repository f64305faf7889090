// Package inspect rotates per-URL indexing inspections through the page
// universe under a fixed daily request budget.
package inspect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hirepath/searchpulse/internal/metrics"
	"github.com/hirepath/searchpulse/internal/searchconsole"
	"github.com/hirepath/searchpulse/internal/store"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

// DefaultDelay is the inter-call pause imposed by the inspection provider's
// rate limit. Calls are strictly sequential; this is a correctness
// requirement, not a tunable.
const DefaultDelay = 200 * time.Millisecond

// DefaultTrafficLookbackDays is how far back a click counts as recent
// traffic when ordering candidates.
const DefaultTrafficLookbackDays = 3

// Config controls Scheduler behavior.
type Config struct {
	SiteURL             string
	Delay               time.Duration
	TrafficLookbackDays int
}

// Result reports what one rotation run did.
type Result struct {
	Inspected   int
	IssuesFound int
	Failed      int
	FailedPages []string
}

// Scheduler selects and executes one budgeted inspection batch.
type Scheduler struct {
	inspector   searchconsole.InspectionProvider
	metricStore store.MetricStore
	inspections store.InspectionStore
	alerts      store.AlertStore
	cfg         Config
	logger      *zap.Logger
}

// New constructs a Scheduler.
func New(
	inspector searchconsole.InspectionProvider,
	metricStore store.MetricStore,
	inspectionStore store.InspectionStore,
	alertStore store.AlertStore,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.TrafficLookbackDays <= 0 {
		cfg.TrafficLookbackDays = DefaultTrafficLookbackDays
	}
	return &Scheduler{
		inspector:   inspector,
		metricStore: metricStore,
		inspections: inspectionStore,
		alerts:      alertStore,
		cfg:         cfg,
		logger:      logger,
	}
}

// Rotate inspects up to budget pages whose last inspection is older than the
// freshness window, traffic pages first. Once every page is fresh, it falls
// back to re-inspecting the oldest ones so the rotation never stalls.
func (s *Scheduler) Rotate(ctx context.Context, date time.Time, budget, freshnessWindowDays int) (Result, error) {
	date = telemetry.Day(date)

	candidates, err := s.selectCandidates(ctx, date, budget, freshnessWindowDays)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		s.logger.Info("no inspection candidates", zap.String("date", telemetry.DayString(date)))
		return Result{}, nil
	}

	var res Result
	var indexingAlerts []telemetry.Alert
	for i, page := range candidates {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				return res, err
			}
		}

		started := time.Now()
		inspection, err := s.inspector.Inspect(ctx, s.cfg.SiteURL+page)
		metrics.ObserveProviderRequest("inspect", time.Since(started))
		res.Inspected++
		if err != nil {
			// Per-URL fault isolation: record and keep going.
			metrics.InspectionDone("error")
			res.Failed++
			res.FailedPages = append(res.FailedPages, page)
			s.logger.Warn("url inspection failed",
				zap.String("page", page),
				zap.Error(err))
			continue
		}
		metrics.InspectionDone("ok")

		row := inspectionRow(page, date, inspection)
		if err := s.inspections.UpsertInspection(ctx, row); err != nil {
			return res, fmt.Errorf("save inspection for %s: %w", page, err)
		}

		if isFailingVerdict(inspection.Verdict) {
			res.IssuesFound++
			indexingAlerts = append(indexingAlerts, indexingAlert(date, page, inspection))
		}
	}

	if len(indexingAlerts) > 0 {
		if err := s.alerts.InsertAlerts(ctx, indexingAlerts); err != nil {
			return res, fmt.Errorf("save indexing alerts: %w", err)
		}
		for _, a := range indexingAlerts {
			metrics.AlertEmitted(string(a.Severity), string(a.Category))
		}
	}

	s.logger.Info("inspection rotation complete",
		zap.String("date", telemetry.DayString(date)),
		zap.Int("inspected", res.Inspected),
		zap.Int("issues", res.IssuesFound),
		zap.Int("failed", res.Failed))
	return res, nil
}

// selectCandidates builds the budgeted, deterministically ordered batch.
func (s *Scheduler) selectCandidates(ctx context.Context, date time.Time, budget, freshnessWindowDays int) ([]string, error) {
	universe, err := s.metricStore.DistinctPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load page universe: %w", err)
	}
	if len(universe) == 0 {
		return nil, nil
	}

	freshSince := date.AddDate(0, 0, -freshnessWindowDays)
	recent, err := s.inspections.RecentlyInspectedPages(ctx, freshSince)
	if err != nil {
		return nil, fmt.Errorf("load recent inspections: %w", err)
	}
	recentSet := toSet(recent)

	var uninspected []string
	for _, p := range universe {
		if !recentSet[p] {
			uninspected = append(uninspected, p)
		}
	}

	if len(uninspected) == 0 {
		// Steady state: every page is fresh. Re-inspect the oldest so the
		// rotation keeps moving.
		oldest, err := s.inspections.OldestInspectedPages(ctx, budget)
		if err != nil {
			return nil, fmt.Errorf("load oldest inspections: %w", err)
		}
		return oldest, nil
	}

	trafficStart := date.AddDate(0, 0, -(s.cfg.TrafficLookbackDays - 1))
	traffic, err := s.metricStore.PagesWithTraffic(ctx, trafficStart, date.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load traffic pages: %w", err)
	}
	trafficSet := toSet(traffic)

	var withTraffic, withoutTraffic []string
	for _, p := range uninspected {
		if trafficSet[p] {
			withTraffic = append(withTraffic, p)
		} else {
			withoutTraffic = append(withoutTraffic, p)
		}
	}
	sort.Strings(withTraffic)
	sort.Strings(withoutTraffic)

	candidates := append(withTraffic, withoutTraffic...)
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}
	return candidates, nil
}

// pause waits the configured inter-call delay, honoring cancellation.
func (s *Scheduler) pause(ctx context.Context) error {
	if s.cfg.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.cfg.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isFailingVerdict reports whether an inspection verdict is a known failing
// state. Pass and unknown (or absent) verdicts are not failures.
func isFailingVerdict(verdict string) bool {
	switch strings.ToLower(verdict) {
	case "", "pass", "unknown":
		return false
	}
	return true
}

func inspectionRow(page string, date time.Time, ins searchconsole.InspectionResult) telemetry.UrlInspection {
	var richTypes, richIssues []string
	for _, item := range ins.RichResults.DetectedItems {
		richTypes = append(richTypes, item.Type)
		richIssues = append(richIssues, item.Issues...)
	}
	return telemetry.UrlInspection{
		Page:                   page,
		InspectedAt:            date,
		Verdict:                ins.Verdict,
		CoverageState:          ins.CoverageState,
		IndexingState:          ins.IndexingState,
		CrawledAs:              ins.CrawledAs,
		LastCrawlTime:          ins.LastCrawlTime,
		PageFetchState:         ins.PageFetchState,
		RobotsTxtState:         ins.RobotsTxtState,
		UserCanonical:          ins.UserCanonical,
		GoogleCanonical:        ins.GoogleCanonical,
		ReferringUrls:          ins.ReferringUrls,
		Sitemap:                ins.Sitemap,
		RichResultsVerdict:     ins.RichResults.Verdict,
		RichResultsTypes:       richTypes,
		RichResultsIssues:      richIssues,
		MobileUsabilityVerdict: ins.MobileUsability.Verdict,
		MobileUsabilityIssues:  ins.MobileUsability.Issues,
	}
}

func indexingAlert(date time.Time, page string, ins searchconsole.InspectionResult) telemetry.Alert {
	desc := fmt.Sprintf("%s is not indexed: verdict %s", page, ins.Verdict)
	if ins.CoverageState != "" {
		desc += ", coverage " + ins.CoverageState
	}
	return telemetry.Alert{
		Date:        date,
		Severity:    telemetry.SeverityWarning,
		Category:    telemetry.CategoryIndexing,
		Title:       "Page not indexed",
		Description: desc,
		Metric:      "indexing",
		EntityType:  telemetry.EntityPage,
		Entity:      page,
	}
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
