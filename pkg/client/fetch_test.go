package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/crypto-market-client/internal/testutil"
	"github.com/Sternrassler/crypto-market-client/pkg/cache"
	"github.com/Sternrassler/crypto-market-client/pkg/market"
)

const globalBody = `{"data":{"active_cryptocurrencies":12000,"markets":900}}`

func keyFor(c *Client, ep Endpoint) cache.CacheKey {
	return cache.KeyFromURL(c.resolve(ep.Path, ep.Query), c.baseURL.Path)
}

func seedStale(t *testing.T, c *Client, ep Endpoint, data string) *cache.CacheEntry {
	t.Helper()

	entry := &cache.CacheEntry{
		Data:       json.RawMessage(data),
		StatusCode: http.StatusOK,
		CachedAt:   time.Now().Add(-time.Hour),
		Duration:   5 * time.Minute,
	}
	c.Cache().Store(context.Background(), keyFor(c, ep), entry)
	return entry
}

func TestFetch_CachesResponse(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/global", testutil.NewJSONResponse(globalBody))

	client := newTestClient(t, testConfig(nil, mock.URL()))
	ctx := context.Background()
	ep := Endpoint{Path: "/global"}

	first := client.Fetch(ctx, ep)
	if first.Source != SourceNetwork {
		t.Errorf("first Source = %v, want %v", first.Source, SourceNetwork)
	}
	if string(first.Data) != globalBody {
		t.Errorf("first Data = %s", first.Data)
	}
	if first.Category != market.CategoryGlobal {
		t.Errorf("Category = %v, want %v", first.Category, market.CategoryGlobal)
	}
	if first.Err != nil {
		t.Errorf("Err = %v, want nil", first.Err)
	}

	second := client.Fetch(ctx, ep)
	if second.Source != SourceMemory {
		t.Errorf("second Source = %v, want %v", second.Source, SourceMemory)
	}
	if !second.CachedAt.Equal(first.CachedAt) {
		t.Errorf("CachedAt = %v, want %v", second.CachedAt, first.CachedAt)
	}

	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestFetch_RedisTierSharedBetweenClients(t *testing.T) {
	redisClient, mr := setupTestRedis(t)

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/global", testutil.NewJSONResponse(globalBody))

	ctx := context.Background()
	ep := Endpoint{Path: "/global"}

	first := newTestClient(t, testConfig(redisClient, mock.URL()))
	if res := first.Fetch(ctx, ep); res.Source != SourceNetwork {
		t.Fatalf("Source = %v, want %v", res.Source, SourceNetwork)
	}

	key := keyFor(first, ep)
	if !mr.Exists(key.String()) {
		t.Fatalf("key %q not written to redis", key.String())
	}

	// A second instance starts with an empty memory tier
	second := newTestClient(t, testConfig(redisClient, mock.URL()))
	res := second.Fetch(ctx, ep)
	if res.Source != SourceRedis {
		t.Errorf("Source = %v, want %v", res.Source, SourceRedis)
	}
	if string(res.Data) != globalBody {
		t.Errorf("Data = %s", res.Data)
	}

	// Backfilled into memory
	if res := second.Fetch(ctx, ep); res.Source != SourceMemory {
		t.Errorf("Source after backfill = %v, want %v", res.Source, SourceMemory)
	}

	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestFetch_ServesStaleOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		response testutil.MockResponse
		wantErr  error
	}{
		{"rate limited", testutil.NewRateLimitResponse(0), ErrRateLimited},
		{"invalid json", testutil.MockResponse{StatusCode: http.StatusOK, Body: "<html>oops</html>"}, ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockUpstream()
			defer mock.Close()
			mock.SetResponse("/global", tt.response)

			client := newTestClient(t, testConfig(nil, mock.URL()))
			ep := Endpoint{Path: "/global"}
			stale := seedStale(t, client, ep, globalBody)

			res := client.Fetch(context.Background(), ep)
			if res.Source != SourceStale {
				t.Errorf("Source = %v, want %v", res.Source, SourceStale)
			}
			if string(res.Data) != globalBody {
				t.Errorf("Data = %s, want stale payload", res.Data)
			}
			if !res.CachedAt.Equal(stale.CachedAt) {
				t.Errorf("CachedAt = %v, want %v", res.CachedAt, stale.CachedAt)
			}
			if !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
		})
	}
}

func TestFetch_ServerErrorServesStale(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/exchanges", testutil.NewServerErrorResponse())

	client := newTestClient(t, testConfig(nil, mock.URL()))
	ep := Endpoint{Path: "/exchanges"}
	seedStale(t, client, ep, `[{"id":"binance"}]`)

	res := client.Fetch(context.Background(), ep)
	if res.Source != SourceStale {
		t.Errorf("Source = %v, want %v", res.Source, SourceStale)
	}

	var marketErr *MarketError
	if !errors.As(res.Err, &marketErr) || marketErr.ErrorClass != ErrorClassServer {
		t.Errorf("Err = %v, want server MarketError", res.Err)
	}

	// Server errors are not retried
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestFetch_FallbackWithoutCache(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/coins/markets", testutil.NewRateLimitResponse(0))

	client := newTestClient(t, testConfig(nil, mock.URL()))

	res := client.Fetch(context.Background(), Endpoint{Path: "/coins/markets"})
	if res.Source != SourceFallback {
		t.Fatalf("Source = %v, want %v", res.Source, SourceFallback)
	}
	if res.Category != market.CategoryMarkets {
		t.Errorf("Category = %v, want %v", res.Category, market.CategoryMarkets)
	}
	if !res.CachedAt.IsZero() {
		t.Errorf("CachedAt = %v, want zero", res.CachedAt)
	}

	var coins []market.Coin
	if err := json.Unmarshal(res.Data, &coins); err != nil {
		t.Fatalf("decode fallback: %v", err)
	}
	if len(coins) != 10 {
		t.Fatalf("fallback coins = %d, want 10", len(coins))
	}
	if coins[0].ID != "bitcoin" {
		t.Errorf("coins[0].ID = %q, want bitcoin", coins[0].ID)
	}

	// Fallback data is not cached
	if got := client.Cache().Memory().Len(); got != 0 {
		t.Errorf("memory entries = %d, want 0", got)
	}
}

func TestFetch_FallbackForUnknownPath(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	client := newTestClient(t, testConfig(nil, mock.URL()))

	tests := []struct {
		path string
		want string
	}{
		{"/coins/list", "[]"},
		{"/simple/price", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res := client.Fetch(context.Background(), Endpoint{Path: tt.path})
			if res.Source != SourceFallback {
				t.Errorf("Source = %v, want %v", res.Source, SourceFallback)
			}
			if string(res.Data) != tt.want {
				t.Errorf("Data = %s, want %s", res.Data, tt.want)
			}
		})
	}
}

func TestFetch_Revalidation(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetHandler("/global", testutil.NewConditionalHandler(`"v1"`, globalBody))

	client := newTestClient(t, testConfig(nil, mock.URL()))
	ctx := context.Background()
	ep := Endpoint{Path: "/global", Duration: 20 * time.Millisecond}

	first := client.Fetch(ctx, ep)
	if first.Source != SourceNetwork {
		t.Fatalf("first Source = %v, want %v", first.Source, SourceNetwork)
	}

	time.Sleep(30 * time.Millisecond)

	second := client.Fetch(ctx, ep)
	if second.Source != SourceRevalidated {
		t.Fatalf("second Source = %v, want %v", second.Source, SourceRevalidated)
	}
	if string(second.Data) != globalBody {
		t.Errorf("Data = %s, want cached payload", second.Data)
	}
	if !second.CachedAt.After(first.CachedAt) {
		t.Errorf("CachedAt not refreshed: %v <= %v", second.CachedAt, first.CachedAt)
	}
	if got := mock.GetConditionalCount(); got != 1 {
		t.Errorf("conditional requests = %d, want 1", got)
	}

	// Fresh again after revalidation
	if res := client.Fetch(ctx, ep); res.Source != SourceMemory {
		t.Errorf("third Source = %v, want %v", res.Source, SourceMemory)
	}
}

func TestFetch_RevalidationExtendsRedisEntry(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetHandler("/global", testutil.NewConditionalHandler(`"v1"`, globalBody))

	rdb, _ := setupTestRedis(t)
	client := newTestClient(t, testConfig(rdb, mock.URL()))
	ctx := context.Background()
	ep := Endpoint{Path: "/global", Duration: 20 * time.Millisecond}

	if res := client.Fetch(ctx, ep); res.Source != SourceNetwork {
		t.Fatalf("first Source = %v, want %v", res.Source, SourceNetwork)
	}
	time.Sleep(30 * time.Millisecond)

	second := client.Fetch(ctx, ep)
	if second.Source != SourceRevalidated {
		t.Fatalf("second Source = %v, want %v", second.Source, SourceRevalidated)
	}

	stored, err := client.Cache().StoreTier().Get(ctx, keyFor(client, ep))
	if err != nil {
		t.Fatalf("store Get() error = %v", err)
	}
	if !stored.CachedAt.Equal(second.CachedAt) {
		t.Errorf("stored CachedAt = %v, want %v", stored.CachedAt, second.CachedAt)
	}
	if stored.ETag != `"v1"` || string(stored.Data) != globalBody {
		t.Errorf("stored entry = %s %s, want the original payload", stored.ETag, stored.Data)
	}
}

func TestFetch_BlockedDoesNotCallUpstream(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/search/trending", testutil.NewJSONResponse(`{"coins":[]}`))

	client := newTestClient(t, testConfig(nil, mock.URL()))
	ctx := context.Background()

	if _, err := client.RateLimiter().RecordRateLimited(ctx, http.Header{"Retry-After": {"60"}}); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	res := client.Fetch(ctx, Endpoint{Path: "/search/trending"})
	if res.Source != SourceFallback {
		t.Errorf("Source = %v, want %v", res.Source, SourceFallback)
	}
	if res.Category != market.CategoryTrending {
		t.Errorf("Category = %v, want %v", res.Category, market.CategoryTrending)
	}
	if !errors.Is(res.Err, ErrRequestBlocked) {
		t.Errorf("Err = %v, want ErrRequestBlocked", res.Err)
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("request count = %d, want 0", got)
	}
}

func TestFetch_CollapsesConcurrentRequests(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/global", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       globalBody,
		Delay:      100 * time.Millisecond,
	})

	client := newTestClient(t, testConfig(nil, mock.URL()))

	const callers = 10
	start := make(chan struct{})
	results := make([]Result, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = client.Fetch(context.Background(), Endpoint{Path: "/global"})
		}()
	}
	close(start)
	wg.Wait()

	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
	for i, res := range results {
		if res.Source != SourceNetwork {
			t.Errorf("results[%d].Source = %v, want %v", i, res.Source, SourceNetwork)
		}
		if string(res.Data) != globalBody {
			t.Errorf("results[%d].Data = %s", i, res.Data)
		}
	}
}

func TestFetch_CallerCancelKeepsRefreshRunning(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/global", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       globalBody,
		Delay:      100 * time.Millisecond,
	})

	client := newTestClient(t, testConfig(nil, mock.URL()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := client.Fetch(ctx, Endpoint{Path: "/global"})
	if res.Source != SourceFallback {
		t.Errorf("Source = %v, want %v", res.Source, SourceFallback)
	}
	if !errors.Is(res.Err, ErrContextCancelled) {
		t.Errorf("Err = %v, want ErrContextCancelled", res.Err)
	}

	// The shared refresh completes and fills the cache
	deadline := time.Now().Add(2 * time.Second)
	for client.Cache().Memory().Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh did not populate the cache")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if res := client.Fetch(context.Background(), Endpoint{Path: "/global"}); res.Source != SourceMemory {
		t.Errorf("Source after refresh = %v, want %v", res.Source, SourceMemory)
	}
}

func TestFetch_DoneContextSkipsUpstream(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/global", testutil.NewJSONResponse(globalBody))

	client := newTestClient(t, testConfig(nil, mock.URL()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := client.Fetch(ctx, Endpoint{Path: "/global"})
	if res.Source != SourceFallback {
		t.Errorf("Source = %v, want %v", res.Source, SourceFallback)
	}
	if !errors.Is(res.Err, ErrContextCancelled) {
		t.Errorf("Err = %v, want ErrContextCancelled", res.Err)
	}

	// Give a detached refresh time to show up
	time.Sleep(50 * time.Millisecond)
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("upstream requests = %d, want 0", got)
	}
}

func TestFetch_RedisFailureIsNotFatal(t *testing.T) {
	redisClient, mr := setupTestRedis(t)

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/global", testutil.NewJSONResponse(globalBody))

	client := newTestClient(t, testConfig(redisClient, mock.URL()))
	mr.SetError("READONLY You can't write against a read only replica.")

	res := client.Fetch(context.Background(), Endpoint{Path: "/global"})
	if res.Source != SourceNetwork {
		t.Errorf("Source = %v, want %v", res.Source, SourceNetwork)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}

	// Memory tier still serves
	if res := client.Fetch(context.Background(), Endpoint{Path: "/global"}); res.Source != SourceMemory {
		t.Errorf("second Source = %v, want %v", res.Source, SourceMemory)
	}
}

func TestSource_Degraded(t *testing.T) {
	tests := []struct {
		source Source
		want   bool
	}{
		{SourceNetwork, false},
		{SourceMemory, false},
		{SourceRedis, false},
		{SourceRevalidated, false},
		{SourceStale, true},
		{SourceFallback, true},
	}

	for _, tt := range tests {
		if got := tt.source.Degraded(); got != tt.want {
			t.Errorf("%s.Degraded() = %v, want %v", tt.source, got, tt.want)
		}
	}
}
