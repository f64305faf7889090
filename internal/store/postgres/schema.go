package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_page_metrics (
	date        DATE             NOT NULL,
	page        TEXT             NOT NULL,
	clicks      BIGINT           NOT NULL DEFAULT 0,
	impressions BIGINT           NOT NULL DEFAULT 0,
	ctr         DOUBLE PRECISION NOT NULL DEFAULT 0,
	position    DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (date, page)
);

CREATE INDEX IF NOT EXISTS idx_page_metrics_page ON daily_page_metrics(page);

CREATE TABLE IF NOT EXISTS daily_query_metrics (
	date        DATE             NOT NULL,
	query       TEXT             NOT NULL,
	clicks      BIGINT           NOT NULL DEFAULT 0,
	impressions BIGINT           NOT NULL DEFAULT 0,
	ctr         DOUBLE PRECISION NOT NULL DEFAULT 0,
	position    DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (date, query)
);

CREATE TABLE IF NOT EXISTS daily_device_metrics (
	date        DATE             NOT NULL,
	device      TEXT             NOT NULL,
	clicks      BIGINT           NOT NULL DEFAULT 0,
	impressions BIGINT           NOT NULL DEFAULT 0,
	ctr         DOUBLE PRECISION NOT NULL DEFAULT 0,
	position    DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (date, device)
);

CREATE TABLE IF NOT EXISTS daily_page_query_metrics (
	date        DATE             NOT NULL,
	page        TEXT             NOT NULL,
	query       TEXT             NOT NULL,
	clicks      BIGINT           NOT NULL DEFAULT 0,
	impressions BIGINT           NOT NULL DEFAULT 0,
	ctr         DOUBLE PRECISION NOT NULL DEFAULT 0,
	position    DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (date, page, query)
);

CREATE TABLE IF NOT EXISTS site_daily_summaries (
	date                DATE             PRIMARY KEY,
	total_clicks        BIGINT           NOT NULL DEFAULT 0,
	total_impressions   BIGINT           NOT NULL DEFAULT 0,
	avg_ctr             DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_position        DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_pages         INTEGER          NOT NULL DEFAULT 0,
	total_queries       INTEGER          NOT NULL DEFAULT 0,
	mobile_clicks       BIGINT           NOT NULL DEFAULT 0,
	mobile_impressions  BIGINT           NOT NULL DEFAULT 0,
	desktop_clicks      BIGINT           NOT NULL DEFAULT 0,
	desktop_impressions BIGINT           NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS alerts (
	id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	date           DATE             NOT NULL,
	severity       TEXT             NOT NULL,
	category       TEXT             NOT NULL,
	title          TEXT             NOT NULL,
	description    TEXT             NOT NULL DEFAULT '',
	metric         TEXT             NOT NULL DEFAULT '',
	entity_type    TEXT             NOT NULL,
	entity         TEXT,
	current_value  DOUBLE PRECISION NOT NULL DEFAULT 0,
	previous_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	change_percent DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_alerts_date ON alerts(date);

CREATE TABLE IF NOT EXISTS url_inspections (
	page                     TEXT        NOT NULL,
	inspected_at             DATE        NOT NULL,
	verdict                  TEXT        NOT NULL DEFAULT '',
	coverage_state           TEXT        NOT NULL DEFAULT '',
	indexing_state           TEXT        NOT NULL DEFAULT '',
	crawled_as               TEXT        NOT NULL DEFAULT '',
	last_crawl_time          TIMESTAMPTZ,
	page_fetch_state         TEXT        NOT NULL DEFAULT '',
	robots_txt_state         TEXT        NOT NULL DEFAULT '',
	user_canonical           TEXT        NOT NULL DEFAULT '',
	google_canonical         TEXT        NOT NULL DEFAULT '',
	referring_urls           TEXT[]      NOT NULL DEFAULT '{}',
	sitemap                  TEXT        NOT NULL DEFAULT '',
	rich_results_verdict     TEXT        NOT NULL DEFAULT '',
	rich_results_types       TEXT[]      NOT NULL DEFAULT '{}',
	rich_results_issues      TEXT[]      NOT NULL DEFAULT '{}',
	mobile_usability_verdict TEXT        NOT NULL DEFAULT '',
	mobile_usability_issues  TEXT[]      NOT NULL DEFAULT '{}',
	PRIMARY KEY (page, inspected_at)
);

CREATE INDEX IF NOT EXISTS idx_inspections_inspected_at ON url_inspections(inspected_at);

CREATE TABLE IF NOT EXISTS sitemap_statuses (
	date            DATE    NOT NULL,
	path            TEXT    NOT NULL,
	last_downloaded TIMESTAMPTZ,
	last_submitted  TIMESTAMPTZ,
	is_pending      BOOLEAN NOT NULL DEFAULT FALSE,
	errors          BIGINT  NOT NULL DEFAULT 0,
	warnings        BIGINT  NOT NULL DEFAULT 0,
	contents        JSONB   NOT NULL DEFAULT '[]',
	PRIMARY KEY (date, path)
);
`

// EnsureSchema creates the telemetry tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
