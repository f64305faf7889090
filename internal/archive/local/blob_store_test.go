// Package local_test tests the local filesystem archiver.
package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepath/searchpulse/internal/archive/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		arch, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, arch)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("CreatesBaseDir", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "reports")
		_, err := local.New(local.Config{BaseDir: base})
		require.NoError(t, err)
		info, err := os.Stat(base)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPut(t *testing.T) {
	base := t.TempDir()
	arch, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)

	t.Run("WritesNestedPath", func(t *testing.T) {
		uri, err := arch.Put(context.Background(), "reports/2025-06-20/page.json", "application/json",
			bytes.NewReader([]byte(`[]`)))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(base, "reports/2025-06-20/page.json"), uri)

		data, err := os.ReadFile(filepath.Join(base, "reports", "2025-06-20", "page.json"))
		require.NoError(t, err)
		assert.Equal(t, []byte(`[]`), data)
	})

	t.Run("RejectsEmptyPath", func(t *testing.T) {
		_, err := arch.Put(context.Background(), "  ", "", bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		_, err := arch.Put(context.Background(), "../escape.json", "", bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("RejectsAbsolute", func(t *testing.T) {
		_, err := arch.Put(context.Background(), "/etc/escape.json", "", bytes.NewReader(nil))
		assert.Error(t, err)
	})
}
