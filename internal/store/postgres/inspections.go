package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hirepath/searchpulse/internal/telemetry"
)

const upsertInspection = `
INSERT INTO url_inspections (
	page, inspected_at, verdict, coverage_state, indexing_state, crawled_as,
	last_crawl_time, page_fetch_state, robots_txt_state, user_canonical,
	google_canonical, referring_urls, sitemap, rich_results_verdict,
	rich_results_types, rich_results_issues, mobile_usability_verdict,
	mobile_usability_issues
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (page, inspected_at) DO UPDATE
SET verdict = EXCLUDED.verdict,
	coverage_state = EXCLUDED.coverage_state,
	indexing_state = EXCLUDED.indexing_state,
	crawled_as = EXCLUDED.crawled_as,
	last_crawl_time = EXCLUDED.last_crawl_time,
	page_fetch_state = EXCLUDED.page_fetch_state,
	robots_txt_state = EXCLUDED.robots_txt_state,
	user_canonical = EXCLUDED.user_canonical,
	google_canonical = EXCLUDED.google_canonical,
	referring_urls = EXCLUDED.referring_urls,
	sitemap = EXCLUDED.sitemap,
	rich_results_verdict = EXCLUDED.rich_results_verdict,
	rich_results_types = EXCLUDED.rich_results_types,
	rich_results_issues = EXCLUDED.rich_results_issues,
	mobile_usability_verdict = EXCLUDED.mobile_usability_verdict,
	mobile_usability_issues = EXCLUDED.mobile_usability_issues`

// UpsertInspection writes an inspection keyed by (page, inspected_at).
func (s *Store) UpsertInspection(ctx context.Context, ins telemetry.UrlInspection) error {
	var lastCrawl any
	if !ins.LastCrawlTime.IsZero() {
		lastCrawl = ins.LastCrawlTime
	}
	_, err := s.db.Exec(ctx, upsertInspection,
		ins.Page,
		telemetry.Day(ins.InspectedAt),
		ins.Verdict,
		ins.CoverageState,
		ins.IndexingState,
		ins.CrawledAs,
		lastCrawl,
		ins.PageFetchState,
		ins.RobotsTxtState,
		ins.UserCanonical,
		ins.GoogleCanonical,
		textArray(ins.ReferringUrls),
		ins.Sitemap,
		ins.RichResultsVerdict,
		textArray(ins.RichResultsTypes),
		textArray(ins.RichResultsIssues),
		ins.MobileUsabilityVerdict,
		textArray(ins.MobileUsabilityIssues),
	)
	if err != nil {
		return fmt.Errorf("upsert inspection: %w", err)
	}
	return nil
}

// RecentlyInspectedPages returns distinct pages inspected at or after since.
func (s *Store) RecentlyInspectedPages(ctx context.Context, since time.Time) ([]string, error) {
	query := `
SELECT DISTINCT page
FROM url_inspections
WHERE inspected_at >= $1
ORDER BY page ASC`
	rows, err := s.db.Query(ctx, query, telemetry.Day(since))
	if err != nil {
		return nil, fmt.Errorf("query recent inspections: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// OldestInspectedPages returns pages by latest inspection ascending.
func (s *Store) OldestInspectedPages(ctx context.Context, limit int) ([]string, error) {
	query := `
SELECT page
FROM url_inspections
GROUP BY page
ORDER BY MAX(inspected_at) ASC, page ASC
LIMIT $1`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query oldest inspections: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// textArray keeps NOT NULL text[] columns happy for nil slices.
func textArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
