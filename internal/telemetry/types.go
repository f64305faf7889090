// Package telemetry defines the daily search-performance rows persisted by
// the pipeline and the alert/inspection records derived from them.
package telemetry

import "time"

// Device values reported by the analytics provider.
const (
	DeviceDesktop = "DESKTOP"
	DeviceMobile  = "MOBILE"
	DeviceTablet  = "TABLET"
)

// Severity classifies how urgent an alert is.
type Severity string

// Alert severities, most urgent first.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Category identifies the kind of movement an alert describes.
type Category string

// Alert categories.
const (
	CategoryClicksDrop      Category = "clicks_drop"
	CategoryImpressionsDrop Category = "impressions_drop"
	CategoryPositionChange  Category = "position_change"
	CategoryNewWinner       Category = "new_winner"
	CategoryIndexing        Category = "indexing"
)

// EntityType tells whether an alert targets the whole site or one page.
type EntityType string

// Alert entity types.
const (
	EntitySite EntityType = "site"
	EntityPage EntityType = "page"
)

// DailyPageMetric is one page's performance for one day.
// Unique on (Date, Page).
type DailyPageMetric struct {
	Date        time.Time
	Page        string
	Clicks      int64
	Impressions int64
	CTR         float64
	Position    float64
}

// DailyQueryMetric is one search query's performance for one day.
// Unique on (Date, Query).
type DailyQueryMetric struct {
	Date        time.Time
	Query       string
	Clicks      int64
	Impressions int64
	CTR         float64
	Position    float64
}

// DailyDeviceMetric is one device class's performance for one day.
// Unique on (Date, Device).
type DailyDeviceMetric struct {
	Date        time.Time
	Device      string
	Clicks      int64
	Impressions int64
	CTR         float64
	Position    float64
}

// DailyPageQueryMetric is the combined page x query slice for one day.
// Unique on (Date, Page, Query).
type DailyPageQueryMetric struct {
	Date        time.Time
	Page        string
	Query       string
	Clicks      int64
	Impressions int64
	CTR         float64
	Position    float64
}

// SiteDailySummary aggregates one day across the whole site. Its existence
// for a date marks that date as already ingested.
type SiteDailySummary struct {
	Date               time.Time
	TotalClicks        int64
	TotalImpressions   int64
	AvgCTR             float64
	AvgPosition        float64
	TotalPages         int
	TotalQueries       int
	MobileClicks       int64
	MobileImpressions  int64
	DesktopClicks      int64
	DesktopImpressions int64
}

// Alert is one detected anomaly for a date. The set of alerts for a date is
// always regenerated whole, never appended to across runs.
type Alert struct {
	Date          time.Time
	Severity      Severity
	Category      Category
	Title         string
	Description   string
	Metric        string
	EntityType    EntityType
	Entity        string
	CurrentValue  float64
	PreviousValue float64
	ChangePercent float64
}

// UrlInspection is the persisted outcome of one indexing inspection.
// Unique on (Page, InspectedAt).
type UrlInspection struct {
	Page                   string
	InspectedAt            time.Time
	Verdict                string
	CoverageState          string
	IndexingState          string
	CrawledAs              string
	LastCrawlTime          time.Time
	PageFetchState         string
	RobotsTxtState         string
	UserCanonical          string
	GoogleCanonical        string
	ReferringUrls          []string
	Sitemap                string
	RichResultsVerdict     string
	RichResultsTypes       []string
	RichResultsIssues      []string
	MobileUsabilityVerdict string
	MobileUsabilityIssues  []string
}

// SitemapStatus is one submitted sitemap's counters for a date.
// Unique on (Date, Path).
type SitemapStatus struct {
	Date           time.Time
	Path           string
	LastDownloaded time.Time
	LastSubmitted  time.Time
	IsPending      bool
	Errors         int64
	Warnings       int64
	Contents       []SitemapContent
}

// SitemapContent is one content-type bucket inside a sitemap.
type SitemapContent struct {
	Type      string
	Submitted int64
	Indexed   int64
}

// Day truncates t to UTC midnight so every row for a calendar day shares the
// same key.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayString renders a day key in the provider's YYYY-MM-DD form.
func DayString(t time.Time) string {
	return Day(t).Format("2006-01-02")
}
