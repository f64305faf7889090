package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hirepath/searchpulse/internal/telemetry"
)

const upsertPageMetric = `
INSERT INTO daily_page_metrics (date, page, clicks, impressions, ctr, position)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (date, page) DO UPDATE
SET clicks = EXCLUDED.clicks,
	impressions = EXCLUDED.impressions,
	ctr = EXCLUDED.ctr,
	position = EXCLUDED.position`

const upsertQueryMetric = `
INSERT INTO daily_query_metrics (date, query, clicks, impressions, ctr, position)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (date, query) DO UPDATE
SET clicks = EXCLUDED.clicks,
	impressions = EXCLUDED.impressions,
	ctr = EXCLUDED.ctr,
	position = EXCLUDED.position`

const upsertDeviceMetric = `
INSERT INTO daily_device_metrics (date, device, clicks, impressions, ctr, position)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (date, device) DO UPDATE
SET clicks = EXCLUDED.clicks,
	impressions = EXCLUDED.impressions,
	ctr = EXCLUDED.ctr,
	position = EXCLUDED.position`

const upsertPageQueryMetric = `
INSERT INTO daily_page_query_metrics (date, page, query, clicks, impressions, ctr, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (date, page, query) DO UPDATE
SET clicks = EXCLUDED.clicks,
	impressions = EXCLUDED.impressions,
	ctr = EXCLUDED.ctr,
	position = EXCLUDED.position`

// UpsertPageMetrics writes page rows keyed by (date, page).
func (s *Store) UpsertPageMetrics(ctx context.Context, rows []telemetry.DailyPageMetric) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertPageMetric, telemetry.Day(r.Date), r.Page, r.Clicks, r.Impressions, r.CTR, r.Position)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("upsert page metrics: %w", err)
	}
	return nil
}

// UpsertQueryMetrics writes query rows keyed by (date, query).
func (s *Store) UpsertQueryMetrics(ctx context.Context, rows []telemetry.DailyQueryMetric) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertQueryMetric, telemetry.Day(r.Date), r.Query, r.Clicks, r.Impressions, r.CTR, r.Position)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("upsert query metrics: %w", err)
	}
	return nil
}

// UpsertDeviceMetrics writes device rows keyed by (date, device).
func (s *Store) UpsertDeviceMetrics(ctx context.Context, rows []telemetry.DailyDeviceMetric) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertDeviceMetric, telemetry.Day(r.Date), r.Device, r.Clicks, r.Impressions, r.CTR, r.Position)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("upsert device metrics: %w", err)
	}
	return nil
}

// UpsertPageQueryMetrics writes one bounded batch of combined rows.
func (s *Store) UpsertPageQueryMetrics(ctx context.Context, rows []telemetry.DailyPageQueryMetric) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertPageQueryMetric, telemetry.Day(r.Date), r.Page, r.Query, r.Clicks, r.Impressions, r.CTR, r.Position)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("upsert page query metrics: %w", err)
	}
	return nil
}

// TopPagesByClicks returns a date's page rows ordered by clicks descending.
func (s *Store) TopPagesByClicks(ctx context.Context, date time.Time, limit int) ([]telemetry.DailyPageMetric, error) {
	query := `
SELECT date, page, clicks, impressions, ctr, position
FROM daily_page_metrics
WHERE date = $1
ORDER BY clicks DESC, page ASC
LIMIT $2`
	rows, err := s.db.Query(ctx, query, telemetry.Day(date), limit)
	if err != nil {
		return nil, fmt.Errorf("query top pages: %w", err)
	}
	defer rows.Close()

	var out []telemetry.DailyPageMetric
	for rows.Next() {
		var m telemetry.DailyPageMetric
		if err := rows.Scan(&m.Date, &m.Page, &m.Clicks, &m.Impressions, &m.CTR, &m.Position); err != nil {
			return nil, fmt.Errorf("scan page metric: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top pages: %w", err)
	}
	return out, nil
}

// PageHistory returns each requested page's rows with start <= date < end.
func (s *Store) PageHistory(ctx context.Context, pages []string, start, end time.Time) (map[string][]telemetry.DailyPageMetric, error) {
	query := `
SELECT date, page, clicks, impressions, ctr, position
FROM daily_page_metrics
WHERE page = ANY($1) AND date >= $2 AND date < $3
ORDER BY page ASC, date ASC`
	rows, err := s.db.Query(ctx, query, pages, telemetry.Day(start), telemetry.Day(end))
	if err != nil {
		return nil, fmt.Errorf("query page history: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]telemetry.DailyPageMetric)
	for rows.Next() {
		var m telemetry.DailyPageMetric
		if err := rows.Scan(&m.Date, &m.Page, &m.Clicks, &m.Impressions, &m.CTR, &m.Position); err != nil {
			return nil, fmt.Errorf("scan page history: %w", err)
		}
		out[m.Page] = append(out[m.Page], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page history: %w", err)
	}
	return out, nil
}

// DistinctPages returns every page ever recorded, sorted ascending.
func (s *Store) DistinctPages(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT page FROM daily_page_metrics ORDER BY page ASC`)
	if err != nil {
		return nil, fmt.Errorf("query distinct pages: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// PagesWithTraffic returns distinct pages with clicks in start <= date < end.
func (s *Store) PagesWithTraffic(ctx context.Context, start, end time.Time) ([]string, error) {
	query := `
SELECT DISTINCT page
FROM daily_page_metrics
WHERE clicks > 0 AND date >= $1 AND date < $2
ORDER BY page ASC`
	rows, err := s.db.Query(ctx, query, telemetry.Day(start), telemetry.Day(end))
	if err != nil {
		return nil, fmt.Errorf("query traffic pages: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan string: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
