package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "simple endpoint no params",
			key: CacheKey{
				Endpoint: "/global",
			},
			want: "market:global",
		},
		{
			name: "trailing slash trimmed",
			key: CacheKey{
				Endpoint: "/search/trending/",
			},
			want: "market:search/trending",
		},
		{
			name: "endpoint with query params",
			key: CacheKey{
				Endpoint: "/search",
				QueryParams: url.Values{
					"query": []string{"btc"},
				},
			},
			want: "market:search:query=btc",
		},
		{
			name: "endpoint with multiple query params (sorted)",
			key: CacheKey{
				Endpoint: "/coins/markets",
				QueryParams: url.Values{
					"vs_currency": []string{"usd"},
					"page":        []string{"1"},
					"per_page":    []string{"100"},
				},
			},
			want: "market:coins/markets:page=1:per_page=100:vs_currency=usd",
		},
		{
			name: "multi-value query param",
			key: CacheKey{
				Endpoint: "/coins/markets",
				QueryParams: url.Values{
					"ids": []string{"bitcoin", "ethereum"},
				},
			},
			want: "market:coins/markets:ids=bitcoin,ethereum",
		},
		{
			name: "empty endpoint",
			key:  CacheKey{},
			want: "market",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := CacheKey{
		Endpoint:    "/coins/bitcoin/market_chart",
		QueryParams: url.Values{"vs_currency": {"usd"}, "days": {"7"}},
	}
	b := CacheKey{
		Endpoint:    "/coins/bitcoin/market_chart",
		QueryParams: url.Values{"days": {"7"}, "vs_currency": {"usd"}},
	}

	for i := 0; i < 10; i++ {
		if a.String() != b.String() {
			t.Fatalf("keys differ: %s vs %s", a.String(), b.String())
		}
	}
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name     string
		rawURL   string
		basePath string
		want     string
	}{
		{
			name:     "strips api base path",
			rawURL:   "https://api.coingecko.com/api/v3/coins/markets?vs_currency=usd&page=2",
			basePath: "/api/v3",
			want:     "market:coins/markets:page=2:vs_currency=usd",
		},
		{
			name:     "base path with trailing slash",
			rawURL:   "https://api.coingecko.com/api/v3/global",
			basePath: "/api/v3/",
			want:     "market:global",
		},
		{
			name:     "no base path",
			rawURL:   "http://127.0.0.1:8080/search/trending",
			basePath: "",
			want:     "market:search/trending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.rawURL)
			if err != nil {
				t.Fatalf("parse url: %v", err)
			}
			if got := KeyFromURL(u, tt.basePath).String(); got != tt.want {
				t.Errorf("KeyFromURL() = %v, want %v", got, tt.want)
			}
		})
	}
}
