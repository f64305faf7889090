package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepath/searchpulse/internal/app"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestNewWiresMemoryServices(t *testing.T) {
	path := writeConfig(t, `
db:
  provider: memory
provider:
  kind: noop
  site_url: https://example.com
archive:
  provider: memory
publisher:
  provider: memory
`)

	a, err := app.New(context.Background(), path)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Store())
	assert.NotNil(t, a.Analytics())
	assert.NotNil(t, a.Inspector())
	assert.NotNil(t, a.Runner())
	assert.Equal(t, "https://example.com", a.Config().Provider.SiteURL)
	assert.NotNil(t, a.Logger())
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		wantErr  string
	}{
		{
			name:     "DBProvider",
			contents: "db:\n  provider: dynamo\n",
			wantErr:  "unknown db provider",
		},
		{
			name:     "AnalyticsProvider",
			contents: "db:\n  provider: memory\nprovider:\n  kind: scraper\n",
			wantErr:  "unknown provider kind",
		},
		{
			name:     "ArchiveProvider",
			contents: "db:\n  provider: memory\narchive:\n  provider: tape\n",
			wantErr:  "unknown archive provider",
		},
		{
			name:     "PublisherProvider",
			contents: "db:\n  provider: memory\npublisher:\n  provider: kafka\n",
			wantErr:  "unknown publisher provider",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := app.New(context.Background(), writeConfig(t, tc.contents))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewMissingConfig(t *testing.T) {
	_, err := app.New(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
