package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivememory "github.com/hirepath/searchpulse/internal/archive/memory"
	"github.com/hirepath/searchpulse/internal/ingest"
	"github.com/hirepath/searchpulse/internal/searchconsole"
	"github.com/hirepath/searchpulse/internal/store/memory"
	"github.com/hirepath/searchpulse/internal/telemetry"
)

var ingestDate = time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

// fakeAnalytics serves canned rows keyed by the joined dimension list.
type fakeAnalytics struct {
	mu    sync.Mutex
	rows  map[string][]searchconsole.Row
	calls int
	err   error
}

func (f *fakeAnalytics) Query(_ context.Context, _, _ time.Time, dimensions []string, _ int) ([]searchconsole.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[strings.Join(dimensions, ",")], nil
}

func (f *fakeAnalytics) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func standardRows() map[string][]searchconsole.Row {
	return map[string][]searchconsole.Row{
		"page": {
			{Keys: []string{"https://example.com/jobs/nursing"}, Clicks: 30, Impressions: 600, CTR: 0.05, Position: 4.0},
			{Keys: []string{"https://example.com/jobs/icu?ref=home"}, Clicks: 10, Impressions: 400, CTR: 0.025, Position: 8.0},
		},
		"query": {
			{Keys: []string{"icu nurse jobs"}, Clicks: 25, Impressions: 500, CTR: 0.05, Position: 3.2},
		},
		"device": {
			{Keys: []string{"mobile"}, Clicks: 28, Impressions: 700},
			{Keys: []string{"desktop"}, Clicks: 12, Impressions: 300},
		},
		"page,query": {
			{Keys: []string{"https://example.com/jobs/nursing", "icu nurse jobs"}, Clicks: 20, Impressions: 300},
		},
	}
}

func TestIngestPersistsRowsAndSummary(t *testing.T) {
	t.Parallel()
	st := memory.New()
	arch := archivememory.New()
	provider := &fakeAnalytics{rows: standardRows()}
	engine := ingest.New(provider, st, st, arch, ingest.Config{SiteURL: "https://example.com"}, zap.NewNop())

	res, err := engine.Ingest(context.Background(), ingestDate)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 1, res.Queries)
	assert.Equal(t, 4, provider.callCount())

	summary, err := st.Summary(context.Background(), ingestDate)
	require.NoError(t, err)
	assert.Equal(t, int64(40), summary.TotalClicks)
	assert.Equal(t, int64(1000), summary.TotalImpressions)
	assert.InDelta(t, 0.04, summary.AvgCTR, 0.0001)
	assert.InDelta(t, 6.0, summary.AvgPosition, 0.0001)
	assert.Equal(t, 2, summary.TotalPages)
	assert.Equal(t, 1, summary.TotalQueries)
	assert.Equal(t, int64(28), summary.MobileClicks)
	assert.Equal(t, int64(700), summary.MobileImpressions)
	assert.Equal(t, int64(12), summary.DesktopClicks)
	assert.Equal(t, int64(300), summary.DesktopImpressions)

	// Page URLs are stored site-relative.
	pages, err := st.DistinctPages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/jobs/icu?ref=home", "/jobs/nursing"}, pages)

	// Raw reports landed in the archive under the date.
	assert.Equal(t, 4, arch.Len())
	_, ok := arch.Blob("reports/2025-06-20/page.json")
	assert.True(t, ok)
}

func TestIngestSecondRunSkips(t *testing.T) {
	t.Parallel()
	st := memory.New()
	provider := &fakeAnalytics{rows: standardRows()}
	engine := ingest.New(provider, st, st, nil, ingest.Config{}, zap.NewNop())

	_, err := engine.Ingest(context.Background(), ingestDate)
	require.NoError(t, err)
	callsAfterFirst := provider.callCount()

	res, err := engine.Ingest(context.Background(), ingestDate)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Pages)
	assert.Equal(t, callsAfterFirst, provider.callCount(), "skipped run must not refetch")
}

func TestIngestFetchFailureWritesNothing(t *testing.T) {
	t.Parallel()
	st := memory.New()
	provider := &fakeAnalytics{err: errors.New("quota exceeded")}
	engine := ingest.New(provider, st, st, nil, ingest.Config{}, zap.NewNop())

	_, err := engine.Ingest(context.Background(), ingestDate)
	require.Error(t, err)

	exists, err := st.SummaryExists(context.Background(), ingestDate)
	require.NoError(t, err)
	assert.False(t, exists, "a failed ingest must stay re-runnable")
	pages, _ := st.DistinctPages(context.Background())
	assert.Empty(t, pages)
}

func TestIngestZeroTrafficDay(t *testing.T) {
	t.Parallel()
	st := memory.New()
	provider := &fakeAnalytics{rows: map[string][]searchconsole.Row{}}
	engine := ingest.New(provider, st, st, nil, ingest.Config{}, zap.NewNop())

	res, err := engine.Ingest(context.Background(), ingestDate)
	require.NoError(t, err)
	assert.Zero(t, res.Pages)

	// The empty summary still marks the date as done.
	summary, err := st.Summary(context.Background(), ingestDate)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalClicks)
	assert.Zero(t, summary.AvgCTR)
}

// countingStore counts page-query batch writes to observe chunking.
type countingStore struct {
	*memory.Store
	mu      sync.Mutex
	batches int
	rows    int
}

func (c *countingStore) UpsertPageQueryMetrics(ctx context.Context, rows []telemetry.DailyPageQueryMetric) error {
	c.mu.Lock()
	c.batches++
	c.rows += len(rows)
	c.mu.Unlock()
	return c.Store.UpsertPageQueryMetrics(ctx, rows)
}

func TestIngestChunksPageQueryWrites(t *testing.T) {
	t.Parallel()
	rows := standardRows()
	var wide []searchconsole.Row
	for i := 0; i < 250; i++ {
		wide = append(wide, searchconsole.Row{
			Keys:   []string{fmt.Sprintf("https://example.com/p/%d", i), fmt.Sprintf("query %d", i)},
			Clicks: 1,
		})
	}
	rows["page,query"] = wide

	st := &countingStore{Store: memory.New()}
	provider := &fakeAnalytics{rows: rows}
	engine := ingest.New(provider, st, st, nil, ingest.Config{}, zap.NewNop())

	_, err := engine.Ingest(context.Background(), ingestDate)
	require.NoError(t, err)

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Equal(t, 3, st.batches, "250 rows at batch size 100 is 3 writes")
	assert.Equal(t, 250, st.rows)
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com/jobs/nursing", "/jobs/nursing"},
		{"https://example.com/jobs/icu?ref=home", "/jobs/icu?ref=home"},
		{"https://example.com/caf%C3%A9", "/caf%C3%A9"},
		{"https://example.com", "https://example.com"},
		{"http://bad host/path", "http://bad host/path"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ingest.NormalizePage(tc.in), tc.in)
	}
}
