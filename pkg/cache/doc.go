// Package cache provides a Redis-backed HTTP response cache for SWAPI.
//
// SWAPI data changes rarely, and the people search is paginated, so scrolling
// back and forth or retyping a term would otherwise repeat identical
// requests. The manager stores 200 responses keyed by endpoint and query and
// keeps the validators needed for conditional requests.
//
// # Freshness
//
// An entry is fresh until its Expires time, derived in this order:
//
//   - Cache-Control: max-age
//   - Expires header
//   - DefaultTTL
//
// Stale entries stay in Redis for StaleRetention so that a conditional
// request (If-None-Match / If-Modified-Since) can revalidate them. A 304
// response refreshes the entry via Manager.Refresh.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//	key := cache.KeyFor("/api/people/", url.Values{"search": {"luke"}, "page": {"1"}})
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case err == cache.ErrCacheMiss:
//		// fetch from SWAPI, then manager.Set(ctx, key, entry)
//	case !entry.IsExpired():
//		// serve entry.Data
//	case cache.ShouldMakeConditionalRequest(entry):
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - swapi_cache_hits_total{freshness} - Cache hits (fresh, stale)
//   - swapi_cache_misses_total - Cache misses
//   - swapi_304_responses_total - Successful revalidations
//   - swapi_cache_errors_total{operation} - Cache operation errors
package cache
