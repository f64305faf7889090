package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hirepath/searchpulse/internal/telemetry"
)

const upsertSitemapStatus = `
INSERT INTO sitemap_statuses (
	date, path, last_downloaded, last_submitted, is_pending, errors, warnings, contents
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (date, path) DO UPDATE
SET last_downloaded = EXCLUDED.last_downloaded,
	last_submitted = EXCLUDED.last_submitted,
	is_pending = EXCLUDED.is_pending,
	errors = EXCLUDED.errors,
	warnings = EXCLUDED.warnings,
	contents = EXCLUDED.contents`

type sitemapContentJSON struct {
	Type      string `json:"type"`
	Submitted int64  `json:"submitted"`
	Indexed   int64  `json:"indexed"`
}

// UpsertSitemapStatus writes a sitemap row keyed by (date, path).
func (s *Store) UpsertSitemapStatus(ctx context.Context, st telemetry.SitemapStatus) error {
	contents := make([]sitemapContentJSON, 0, len(st.Contents))
	for _, c := range st.Contents {
		contents = append(contents, sitemapContentJSON{Type: c.Type, Submitted: c.Submitted, Indexed: c.Indexed})
	}
	contentsJSON, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("marshal sitemap contents: %w", err)
	}

	var lastDownloaded, lastSubmitted any
	if !st.LastDownloaded.IsZero() {
		lastDownloaded = st.LastDownloaded
	}
	if !st.LastSubmitted.IsZero() {
		lastSubmitted = st.LastSubmitted
	}

	_, err = s.db.Exec(ctx, upsertSitemapStatus,
		telemetry.Day(st.Date),
		st.Path,
		lastDownloaded,
		lastSubmitted,
		st.IsPending,
		st.Errors,
		st.Warnings,
		contentsJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert sitemap status: %w", err)
	}
	return nil
}
