package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached SWAPI response.
type CacheKey struct {
	// Endpoint is the request path (e.g., "/api/people/")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"search": "luke", "page": "2"})
	QueryParams url.Values
}

// KeyFor builds a key from a path and query.
func KeyFor(endpoint string, query url.Values) CacheKey {
	return CacheKey{Endpoint: endpoint, QueryParams: query}
}

// String generates a deterministic cache key string.
// Format: swapi:endpoint:query1=val1:query2=val2
//
// Example:
//
//	swapi:api/people:page=2:search=luke
func (k CacheKey) String() string {
	parts := []string{"swapi"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism
	if len(k.QueryParams) > 0 {
		keys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
