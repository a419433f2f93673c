//go:build integration

package integration

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/swapi-search/internal/testutil"
	"github.com/Sternrassler/swapi-search/pkg/browser"
	"github.com/Sternrassler/swapi-search/pkg/cache"
	"github.com/Sternrassler/swapi-search/pkg/character"
	"github.com/Sternrassler/swapi-search/pkg/client"
	"github.com/Sternrassler/swapi-search/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, mock *testutil.MockSWAPI, redisClient *redis.Client) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig(redisClient, "swapi-search-integration/1.0")
	cfg.BaseURL = mock.URL()
	cfg.MaxRetries = 0
	cfg.InitialBackoff = time.Millisecond
	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// TestFullSearchFlow tests the complete flow: Session → Quota → Cache miss →
// SWAPI → Cache store, then a second session served from cache.
func TestFullSearchFlow(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	mock := testutil.NewMockSWAPI(testutil.SamplePeople())
	defer mock.Close()
	mock.SetPageSize(5)

	c := newClient(t, mock, redisClient)

	first := browser.NewSession(c, browser.Config{})
	first.OnSearchTextChanged("r")
	first.Wait()
	require.True(t, first.OnScrollNearEnd())
	first.Wait()
	want := first.State()
	first.Close()

	assert.Equal(t, 10, want.Accumulated)
	assert.Equal(t, 2, mock.GetRequestCount())

	second := browser.NewSession(c, browser.Config{})
	defer second.Close()
	second.OnSearchTextChanged("r")
	second.Wait()
	require.True(t, second.OnScrollNearEnd())
	second.Wait()

	assert.Equal(t, want.Display, second.State().Display)
	assert.Equal(t, 2, mock.GetRequestCount(), "second session should be served from Redis")

	ctx := context.Background()
	keys, err := redisClient.Keys(ctx, "swapi:*").Result()
	require.NoError(t, err)
	assert.Contains(t, keys, "swapi:api/people:page=1:search=r")
}

// TestConditionalRequestsAcrossClients checks that a stale entry written by
// one client is revalidated by another with If-None-Match.
func TestConditionalRequestsAcrossClients(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	mock := testutil.NewMockSWAPI(testutil.SamplePeople())
	defer mock.Close()

	ctx := context.Background()
	q := character.NewSearchQuery("Luke")

	_, err := newClient(t, mock, redisClient).Search(ctx, q)
	require.NoError(t, err)

	// Age the entry past its freshness lifetime.
	key := cache.KeyFor("/api/people/", url.Values{"search": {"Luke"}, "page": {"1"}})
	mgr := cache.NewManager(redisClient)
	entry, err := mgr.Get(ctx, key)
	require.NoError(t, err)
	entry.Expires = time.Now().Add(-time.Minute)
	require.NoError(t, mgr.Set(ctx, key, entry))

	mock.SetHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})

	page, err := newClient(t, mock, redisClient).Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, page.Characters, 1)
	assert.Equal(t, "Luke Skywalker", page.Characters[0].Name)
	assert.Equal(t, 1, mock.GetConditionalCount())
}

// TestRetryAfterBlocksSharedQuota checks that a 429 seen by one client
// blocks every client on the same Redis until Retry-After passes.
func TestRetryAfterBlocksSharedQuota(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	mock := testutil.NewMockSWAPI(testutil.SamplePeople())
	defer mock.Close()
	mock.Enqueue(testutil.NewRateLimitResponse(1))

	ctx := context.Background()
	a := newClient(t, mock, redisClient)
	b := newClient(t, mock, redisClient)

	_, err := a.Search(ctx, character.NewSearchQuery("Leia"))
	require.Error(t, err)
	assert.Equal(t, client.ErrorClassRateLimit, client.ClassOf(err))

	_, err = b.Search(ctx, character.NewSearchQuery("Owen"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrQuotaExceeded))
	assert.Equal(t, 1, mock.GetRequestCount())

	// The session sees the refusal as an empty page.
	s := browser.NewSession(b, browser.Config{})
	defer s.Close()
	s.OnSearchTextChanged("Owen")
	s.Wait()
	assert.True(t, s.State().Empty)

	time.Sleep(1100 * time.Millisecond)

	page, err := b.Search(ctx, character.NewSearchQuery("Owen"))
	require.NoError(t, err)
	assert.Len(t, page.Characters, 1)
}

// TestExportUsesCache fetches every page twice; the second run is served
// from Redis.
func TestExportUsesCache(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	mock := testutil.NewMockSWAPI(testutil.SamplePeople())
	defer mock.Close()

	c := newClient(t, mock, redisClient)
	fetcher := pagination.NewBatchFetcher(c, pagination.DefaultConfig())
	ctx := context.Background()

	first, err := fetcher.FetchAll(ctx, "")
	require.NoError(t, err)
	second, err := fetcher.FetchAll(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 12)
	assert.Equal(t, 2, mock.GetRequestCount())
}
