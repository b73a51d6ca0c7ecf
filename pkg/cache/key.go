package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached upstream response.
type CacheKey struct {
	// Endpoint is the upstream path relative to the API base (e.g., "/coins/markets")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"vs_currency": "usd"})
	QueryParams url.Values
}

// KeyFromURL builds a key from a request URL, stripping basePath from the
// front of the path.
func KeyFromURL(u *url.URL, basePath string) CacheKey {
	path := u.Path
	if basePath != "" {
		path = strings.TrimPrefix(path, strings.TrimSuffix(basePath, "/"))
	}
	return CacheKey{Endpoint: path, QueryParams: u.Query()}
}

// String generates a deterministic cache key string.
// Format: market:endpoint:query1=val1:query2=val2
//
// Example:
//
//	market:coins/markets:page=1:per_page=100:vs_currency=usd
func (k CacheKey) String() string {
	parts := []string{"market"}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
