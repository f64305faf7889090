// Package searchconsole defines the read-only boundary to the external
// search-analytics and URL-inspection services. Implementations own auth and
// transport; the pipeline only depends on these interfaces.
package searchconsole

import (
	"context"
	"time"
)

// Dimensions accepted by AnalyticsProvider.Query.
const (
	DimensionPage   = "page"
	DimensionQuery  = "query"
	DimensionDevice = "device"
)

// DefaultRowLimit is the provider-side cap on rows per report.
const DefaultRowLimit = 25000

// Row is one dimension-sliced analytics result. Keys align positionally with
// the requested dimensions.
type Row struct {
	Keys        []string
	Clicks      int64
	Impressions int64
	CTR         float64
	Position    float64
}

// RichResults is the structured-data portion of an inspection.
type RichResults struct {
	Verdict       string
	DetectedItems []DetectedItem
}

// DetectedItem is one rich-result type with its issues.
type DetectedItem struct {
	Type   string
	Issues []string
}

// MobileUsability is the mobile-friendliness portion of an inspection.
type MobileUsability struct {
	Verdict string
	Issues  []string
}

// InspectionResult is the provider's full answer for one URL.
type InspectionResult struct {
	Verdict         string
	CoverageState   string
	IndexingState   string
	CrawledAs       string
	LastCrawlTime   time.Time
	PageFetchState  string
	RobotsTxtState  string
	UserCanonical   string
	GoogleCanonical string
	ReferringUrls   []string
	Sitemap         string
	RichResults     RichResults
	MobileUsability MobileUsability
}

// Sitemap is one submitted sitemap with its counters.
type Sitemap struct {
	Path           string
	LastDownloaded time.Time
	LastSubmitted  time.Time
	IsPending      bool
	Errors         int64
	Warnings       int64
	Contents       []SitemapContent
}

// SitemapContent is one content-type bucket inside a sitemap report.
type SitemapContent struct {
	Type      string
	Submitted int64
	Indexed   int64
}

// AnalyticsProvider reads dimension-sliced performance reports.
type AnalyticsProvider interface {
	// Query returns rows for the inclusive date range, sliced by the given
	// dimensions. rowLimit caps the result size.
	Query(ctx context.Context, start, end time.Time, dimensions []string, rowLimit int) ([]Row, error)
}

// InspectionProvider reads per-URL indexing state and the sitemap list.
type InspectionProvider interface {
	Inspect(ctx context.Context, url string) (InspectionResult, error)
	ListSitemaps(ctx context.Context) ([]Sitemap, error)
}
