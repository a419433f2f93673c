//go:build integration

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sternrassler/swapi-search/internal/testutil"
	"github.com/Sternrassler/swapi-search/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyEndpoint_Redis(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	mock := testutil.NewMockSWAPI(nil)
	defer mock.Close()

	cfg := client.DefaultConfig(redisClient, "test/1.0")
	cfg.BaseURL = mock.URL()
	c, err := client.New(cfg)
	require.NoError(t, err)
	defer c.Close()

	handler := readyHandler(c)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	redisClient.Close()

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
