package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	require.NotNil(t, rowsSavedTotal)
}

func TestRecordersBeforeInitAreNoops(t *testing.T) {
	// Recorders must never panic, even if a caller skips Init.
	RowsSaved("page", 10)
	AlertEmitted("critical", "clicks_drop")
	InspectionDone("ok")
	ObserveProviderRequest("query_page", time.Millisecond)
	RunFinished("ok")
}

func TestHandlerEndpoints(t *testing.T) {
	Init()
	RowsSaved("page", 3)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	t.Run("Healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
