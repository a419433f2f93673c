package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/Sternrassler/swapi-search/pkg/browser"
	_ "github.com/Sternrassler/swapi-search/pkg/client"
	"github.com/Sternrassler/swapi-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, prometheus.DefaultRegisterer, metrics.Registry)
	assert.Equal(t, prometheus.DefaultGatherer, metrics.Gatherer)
}

func TestHandler_ServesCatalogue(t *testing.T) {
	srv := httptest.NewServer(metrics.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Unlabelled metrics are exported from registration on.
	for _, name := range []string{
		"swapi_session_stale_discards_total",
		"swapi_request_duration_seconds",
		"swapi_cache_misses_total",
		"swapi_quota_remaining",
	} {
		assert.Contains(t, string(body), name)
	}
}
