package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepath/searchpulse/internal/store"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

var testDate = time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	st, err := NewWithDB(mock)
	require.NoError(t, err)
	return st, mock
}

func TestNewWithDBRequiresPool(t *testing.T) {
	t.Parallel()
	_, err := NewWithDB(nil)
	require.Error(t, err)
}

func TestUpsertSummary(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO site_daily_summaries").
		WithArgs(testDate, int64(100), int64(2000), 0.05, 12.5, 40, 75,
			int64(60), int64(1200), int64(40), int64(800)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.UpsertSummary(context.Background(), telemetry.SiteDailySummary{
		Date:               testDate.Add(7 * time.Hour), // truncated to the day key
		TotalClicks:        100,
		TotalImpressions:   2000,
		AvgCTR:             0.05,
		AvgPosition:        12.5,
		TotalPages:         40,
		TotalQueries:       75,
		MobileClicks:       60,
		MobileImpressions:  1200,
		DesktopClicks:      40,
		DesktopImpressions: 800,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryNotFound(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectQuery("FROM site_daily_summaries").
		WithArgs(testDate).
		WillReturnError(pgx.ErrNoRows)

	_, err := st.Summary(context.Background(), testDate)
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryExists(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(testDate).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := st.SummaryExists(context.Background(), testDate)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummariesInRange(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	cols := []string{
		"date", "total_clicks", "total_impressions", "avg_ctr", "avg_position",
		"total_pages", "total_queries",
		"mobile_clicks", "mobile_impressions", "desktop_clicks", "desktop_impressions",
	}
	mock.ExpectQuery("FROM site_daily_summaries").
		WithArgs(testDate.AddDate(0, 0, -7), testDate).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(testDate.AddDate(0, 0, -7), int64(90), int64(1800), 0.05, 10.0, 30, 60, int64(50), int64(900), int64(40), int64(900)).
			AddRow(testDate.AddDate(0, 0, -6), int64(110), int64(2200), 0.05, 11.0, 32, 64, int64(55), int64(1100), int64(55), int64(1100)))

	got, err := st.SummariesInRange(context.Background(), testDate.AddDate(0, 0, -7), testDate)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(90), got[0].TotalClicks)
	assert.Equal(t, int64(110), got[1].TotalClicks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPageMetricsBatch(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO daily_page_metrics").
		WithArgs(testDate, "/a", int64(3), int64(30), 0.1, 5.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO daily_page_metrics").
		WithArgs(testDate, "/b", int64(1), int64(10), 0.1, 9.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.UpsertPageMetrics(context.Background(), []telemetry.DailyPageMetric{
		{Date: testDate, Page: "/a", Clicks: 3, Impressions: 30, CTR: 0.1, Position: 5.0},
		{Date: testDate, Page: "/b", Clicks: 1, Impressions: 10, CTR: 0.1, Position: 9.0},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPageMetricsEmptyIsNoop(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	require.NoError(t, st.UpsertPageMetrics(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopPagesByClicks(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	cols := []string{"date", "page", "clicks", "impressions", "ctr", "position"}
	mock.ExpectQuery("ORDER BY clicks DESC").
		WithArgs(testDate, 200).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(testDate, "/top", int64(50), int64(500), 0.1, 2.0).
			AddRow(testDate, "/second", int64(20), int64(400), 0.05, 6.0))

	got, err := st.TopPagesByClicks(context.Background(), testDate, 200)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/top", got[0].Page)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPageHistoryGroupsByPage(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	start, end := testDate.AddDate(0, 0, -7), testDate
	cols := []string{"date", "page", "clicks", "impressions", "ctr", "position"}
	mock.ExpectQuery("FROM daily_page_metrics").
		WithArgs([]string{"/a", "/b"}, start, end).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(start, "/a", int64(5), int64(50), 0.1, 4.0).
			AddRow(start.AddDate(0, 0, 1), "/a", int64(6), int64(60), 0.1, 4.0).
			AddRow(start, "/b", int64(1), int64(10), 0.1, 8.0))

	got, err := st.PageHistory(context.Background(), []string{"/a", "/b"}, start, end)
	require.NoError(t, err)
	assert.Len(t, got["/a"], 2)
	assert.Len(t, got["/b"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAlertsForDate(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM alerts").
		WithArgs(testDate).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, st.DeleteAlertsForDate(context.Background(), testDate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlertsNullsEmptyEntity(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO alerts").
		WithArgs(testDate, "critical", "clicks_drop", "Site clicks dropped sharply",
			pgxmock.AnyArg(), "clicks", "site", nil, 60.0, 100.0, -40.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO alerts").
		WithArgs(testDate, "warning", "clicks_drop", "Page clicks dropped",
			pgxmock.AnyArg(), "clicks", "page", "/jobs/nursing/icu", 2.0, 20.0, -90.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.InsertAlerts(context.Background(), []telemetry.Alert{
		{
			Date: testDate, Severity: telemetry.SeverityCritical, Category: telemetry.CategoryClicksDrop,
			Title: "Site clicks dropped sharply", Description: "d", Metric: "clicks",
			EntityType: telemetry.EntitySite, CurrentValue: 60, PreviousValue: 100, ChangePercent: -40,
		},
		{
			Date: testDate, Severity: telemetry.SeverityWarning, Category: telemetry.CategoryClicksDrop,
			Title: "Page clicks dropped", Description: "d", Metric: "clicks",
			EntityType: telemetry.EntityPage, Entity: "/jobs/nursing/icu",
			CurrentValue: 2, PreviousValue: 20, ChangePercent: -90,
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertsForDate(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	cols := []string{
		"date", "severity", "category", "title", "description", "metric",
		"entity_type", "entity", "current_value", "previous_value", "change_percent",
	}
	mock.ExpectQuery("FROM alerts").
		WithArgs(testDate).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(testDate, "critical", "clicks_drop", "t", "d", "clicks", "site", "", 60.0, 100.0, -40.0))

	got, err := st.AlertsForDate(context.Background(), testDate)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, telemetry.SeverityCritical, got[0].Severity)
	assert.Equal(t, telemetry.EntitySite, got[0].EntityType)
	assert.Empty(t, got[0].Entity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertInspection(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	lastCrawl := testDate.Add(-48 * time.Hour)
	mock.ExpectExec("INSERT INTO url_inspections").
		WithArgs("/jobs/icu", testDate, "PASS", "Submitted and indexed", "INDEXING_ALLOWED",
			"MOBILE", lastCrawl, "SUCCESSFUL", "ALLOWED", "https://example.com/jobs/icu",
			"https://example.com/jobs/icu", []string{"https://example.com/jobs"},
			"https://example.com/sitemap.xml", "PASS", []string{"JobPosting"}, []string{},
			"PASS", []string{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.UpsertInspection(context.Background(), telemetry.UrlInspection{
		Page:                   "/jobs/icu",
		InspectedAt:            testDate,
		Verdict:                "PASS",
		CoverageState:          "Submitted and indexed",
		IndexingState:          "INDEXING_ALLOWED",
		CrawledAs:              "MOBILE",
		LastCrawlTime:          lastCrawl,
		PageFetchState:         "SUCCESSFUL",
		RobotsTxtState:         "ALLOWED",
		UserCanonical:          "https://example.com/jobs/icu",
		GoogleCanonical:        "https://example.com/jobs/icu",
		ReferringUrls:          []string{"https://example.com/jobs"},
		Sitemap:                "https://example.com/sitemap.xml",
		RichResultsVerdict:     "PASS",
		RichResultsTypes:       []string{"JobPosting"},
		MobileUsabilityVerdict: "PASS",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOldestInspectedPages(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectQuery("GROUP BY page").
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"page"}).AddRow("/oldest").AddRow("/next"))

	got, err := st.OldestInspectedPages(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"/oldest", "/next"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSitemapStatus(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO sitemap_statuses").
		WithArgs(testDate, "https://example.com/sitemap.xml", nil, nil, false,
			int64(2), int64(1), []byte(`[{"type":"web","submitted":100,"indexed":90}]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.UpsertSitemapStatus(context.Background(), telemetry.SitemapStatus{
		Date:     testDate,
		Path:     "https://example.com/sitemap.xml",
		Errors:   2,
		Warnings: 1,
		Contents: []telemetry.SitemapContent{{Type: "web", Submitted: 100, Indexed: 90}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
