package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hirepath/searchpulse/internal/store"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

const upsertSummary = `
INSERT INTO site_daily_summaries (
	date, total_clicks, total_impressions, avg_ctr, avg_position,
	total_pages, total_queries,
	mobile_clicks, mobile_impressions, desktop_clicks, desktop_impressions
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (date) DO UPDATE
SET total_clicks = EXCLUDED.total_clicks,
	total_impressions = EXCLUDED.total_impressions,
	avg_ctr = EXCLUDED.avg_ctr,
	avg_position = EXCLUDED.avg_position,
	total_pages = EXCLUDED.total_pages,
	total_queries = EXCLUDED.total_queries,
	mobile_clicks = EXCLUDED.mobile_clicks,
	mobile_impressions = EXCLUDED.mobile_impressions,
	desktop_clicks = EXCLUDED.desktop_clicks,
	desktop_impressions = EXCLUDED.desktop_impressions`

const selectSummary = `
SELECT date, total_clicks, total_impressions, avg_ctr, avg_position,
	total_pages, total_queries,
	mobile_clicks, mobile_impressions, desktop_clicks, desktop_impressions
FROM site_daily_summaries`

// UpsertSummary writes the summary keyed by date.
func (s *Store) UpsertSummary(ctx context.Context, sum telemetry.SiteDailySummary) error {
	_, err := s.db.Exec(ctx, upsertSummary,
		telemetry.Day(sum.Date),
		sum.TotalClicks,
		sum.TotalImpressions,
		sum.AvgCTR,
		sum.AvgPosition,
		sum.TotalPages,
		sum.TotalQueries,
		sum.MobileClicks,
		sum.MobileImpressions,
		sum.DesktopClicks,
		sum.DesktopImpressions,
	)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// Summary returns the summary for a date or store.ErrNotFound.
func (s *Store) Summary(ctx context.Context, date time.Time) (telemetry.SiteDailySummary, error) {
	row := s.db.QueryRow(ctx, selectSummary+` WHERE date = $1`, telemetry.Day(date))
	sum, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return telemetry.SiteDailySummary{}, store.ErrNotFound
		}
		return telemetry.SiteDailySummary{}, fmt.Errorf("query summary: %w", err)
	}
	return sum, nil
}

// SummaryExists reports whether a date has been ingested.
func (s *Store) SummaryExists(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM site_daily_summaries WHERE date = $1)`,
		telemetry.Day(date),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query summary existence: %w", err)
	}
	return exists, nil
}

// SummariesInRange returns summaries with start <= date < end, date ascending.
func (s *Store) SummariesInRange(ctx context.Context, start, end time.Time) ([]telemetry.SiteDailySummary, error) {
	rows, err := s.db.Query(ctx,
		selectSummary+` WHERE date >= $1 AND date < $2 ORDER BY date ASC`,
		telemetry.Day(start), telemetry.Day(end),
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []telemetry.SiteDailySummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

func scanSummary(row pgx.Row) (telemetry.SiteDailySummary, error) {
	var sum telemetry.SiteDailySummary
	err := row.Scan(
		&sum.Date,
		&sum.TotalClicks,
		&sum.TotalImpressions,
		&sum.AvgCTR,
		&sum.AvgPosition,
		&sum.TotalPages,
		&sum.TotalQueries,
		&sum.MobileClicks,
		&sum.MobileImpressions,
		&sum.DesktopClicks,
		&sum.DesktopImpressions,
	)
	return sum, err
}
