// Package sitemaps mirrors the provider's submitted-sitemap counters into
// the store, one row per (date, path).
package sitemaps

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hirepath/searchpulse/internal/metrics"
	"github.com/hirepath/searchpulse/internal/searchconsole"
	"github.com/hirepath/searchpulse/internal/store"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

// Syncer fetches and upserts the sitemap list.
type Syncer struct {
	inspector searchconsole.InspectionProvider
	sitemaps  store.SitemapStore
	logger    *zap.Logger
}

// New constructs a Syncer.
func New(inspector searchconsole.InspectionProvider, sitemapStore store.SitemapStore, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		inspector: inspector,
		sitemaps:  sitemapStore,
		logger:    logger,
	}
}

// Sync fetches the current sitemap list and upserts each entry under the
// date. Returns the number of sitemaps stored.
func (s *Syncer) Sync(ctx context.Context, date time.Time) (int, error) {
	date = telemetry.Day(date)

	started := time.Now()
	sitemaps, err := s.inspector.ListSitemaps(ctx)
	metrics.ObserveProviderRequest("list_sitemaps", time.Since(started))
	if err != nil {
		return 0, fmt.Errorf("list sitemaps: %w", err)
	}

	for _, sm := range sitemaps {
		contents := make([]telemetry.SitemapContent, 0, len(sm.Contents))
		for _, c := range sm.Contents {
			contents = append(contents, telemetry.SitemapContent{
				Type:      c.Type,
				Submitted: c.Submitted,
				Indexed:   c.Indexed,
			})
		}
		row := telemetry.SitemapStatus{
			Date:           date,
			Path:           sm.Path,
			LastDownloaded: sm.LastDownloaded,
			LastSubmitted:  sm.LastSubmitted,
			IsPending:      sm.IsPending,
			Errors:         sm.Errors,
			Warnings:       sm.Warnings,
			Contents:       contents,
		}
		if err := s.sitemaps.UpsertSitemapStatus(ctx, row); err != nil {
			return 0, fmt.Errorf("save sitemap %s: %w", sm.Path, err)
		}
	}

	s.logger.Info("sitemap sync complete",
		zap.String("date", telemetry.DayString(date)),
		zap.Int("sitemaps", len(sitemaps)))
	return len(sitemaps), nil
}
