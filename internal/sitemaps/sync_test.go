package sitemaps_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirepath/searchpulse/internal/searchconsole"
	"github.com/hirepath/searchpulse/internal/sitemaps"
	"github.com/hirepath/searchpulse/internal/store/memory"
)

type fakeLister struct {
	sitemaps []searchconsole.Sitemap
	err      error
}

func (f *fakeLister) Inspect(context.Context, string) (searchconsole.InspectionResult, error) {
	return searchconsole.InspectionResult{}, errors.New("not used")
}

func (f *fakeLister) ListSitemaps(context.Context) ([]searchconsole.Sitemap, error) {
	return f.sitemaps, f.err
}

func TestSyncStoresSitemaps(t *testing.T) {
	t.Parallel()
	date := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	st := memory.New()
	lister := &fakeLister{sitemaps: []searchconsole.Sitemap{
		{
			Path:     "https://example.com/sitemap.xml",
			Errors:   1,
			Warnings: 2,
			Contents: []searchconsole.SitemapContent{
				{Type: "web", Submitted: 1200, Indexed: 1100},
			},
		},
		{Path: "https://example.com/sitemap-news.xml", IsPending: true},
	}}

	count, err := sitemaps.New(lister, st, zap.NewNop()).Sync(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored := st.SitemapStatuses(date)
	require.Len(t, stored, 2)
	assert.Equal(t, "https://example.com/sitemap-news.xml", stored[0].Path)
	assert.True(t, stored[0].IsPending)
	assert.Equal(t, int64(1), stored[1].Errors)
	require.Len(t, stored[1].Contents, 1)
	assert.Equal(t, int64(1100), stored[1].Contents[0].Indexed)
}

func TestSyncPropagatesListError(t *testing.T) {
	t.Parallel()
	st := memory.New()
	lister := &fakeLister{err: errors.New("auth expired")}

	_, err := sitemaps.New(lister, st, zap.NewNop()).Sync(context.Background(), time.Now())
	require.Error(t, err)
	assert.ErrorContains(t, err, "list sitemaps")
}

func TestSyncRerunOverwrites(t *testing.T) {
	t.Parallel()
	date := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	st := memory.New()
	lister := &fakeLister{sitemaps: []searchconsole.Sitemap{
		{Path: "https://example.com/sitemap.xml", Errors: 3},
	}}
	syncer := sitemaps.New(lister, st, zap.NewNop())

	_, err := syncer.Sync(context.Background(), date)
	require.NoError(t, err)

	lister.sitemaps[0].Errors = 0
	_, err = syncer.Sync(context.Background(), date)
	require.NoError(t, err)

	stored := st.SitemapStatuses(date)
	require.Len(t, stored, 1)
	assert.Zero(t, stored[0].Errors)
}
