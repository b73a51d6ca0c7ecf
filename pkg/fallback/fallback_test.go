package fallback

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/market"
)

func TestForPath(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		path     string
		category market.Category
		check    func(t *testing.T, data json.RawMessage)
	}{
		{
			name:     "markets",
			path:     "/coins/markets?vs_currency=usd&page=1",
			category: market.CategoryMarkets,
			check: func(t *testing.T, data json.RawMessage) {
				var coins []market.Coin
				mustDecode(t, data, &coins)
				if len(coins) != 10 {
					t.Fatalf("len(coins) = %d, want 10", len(coins))
				}
				if coins[0].ID != "bitcoin" || coins[0].CurrentPrice != 48000 {
					t.Errorf("coins[0] = %+v, want bitcoin at 48000", coins[0])
				}
				if coins[9].ID != "shiba-inu" || coins[9].CurrentPrice != 0.00001 {
					t.Errorf("coins[9] = %+v, want shiba-inu at 0.00001", coins[9])
				}
			},
		},
		{
			name:     "known coin",
			path:     "/coins/bitcoin?localization=false",
			category: market.CategoryCoin,
			check: func(t *testing.T, data json.RawMessage) {
				var coin market.CoinDetail
				mustDecode(t, data, &coin)
				if coin.MarketData.CurrentPrice["usd"] != 48000 {
					t.Errorf("bitcoin price = %v, want 48000", coin.MarketData.CurrentPrice["usd"])
				}
				if coin.MarketData.TotalSupply == nil || *coin.MarketData.TotalSupply != 21000000 {
					t.Errorf("bitcoin total supply = %v, want 21000000", coin.MarketData.TotalSupply)
				}
			},
		},
		{
			name:     "ethereum has null total supply",
			path:     "/coins/ethereum",
			category: market.CategoryCoin,
			check: func(t *testing.T, data json.RawMessage) {
				var doc map[string]json.RawMessage
				mustDecode(t, data, &doc)
				var marketData map[string]any
				mustDecode(t, doc["market_data"], &marketData)
				if v, ok := marketData["total_supply"]; !ok || v != nil {
					t.Errorf("total_supply = %v (present %v), want null", v, ok)
				}
			},
		},
		{
			name:     "unknown coin",
			path:     "/coins/some-token",
			category: market.CategoryCoin,
			check: func(t *testing.T, data json.RawMessage) {
				if string(data) != "[]" {
					t.Errorf("data = %s, want []", data)
				}
			},
		},
		{
			name:     "global",
			path:     "/global",
			category: market.CategoryGlobal,
			check: func(t *testing.T, data json.RawMessage) {
				var g market.GlobalResponse
				mustDecode(t, data, &g)
				if g.Data.ActiveCryptocurrencies != 10000 {
					t.Errorf("active = %d, want 10000", g.Data.ActiveCryptocurrencies)
				}
				if g.Data.MarketCapPercentage["btc"] != 45 {
					t.Errorf("btc dominance = %v, want 45", g.Data.MarketCapPercentage["btc"])
				}
			},
		},
		{
			name:     "market chart",
			path:     "/coins/bitcoin/market_chart?vs_currency=usd&days=7",
			category: market.CategoryMarketChart,
			check: func(t *testing.T, data json.RawMessage) {
				var c market.MarketChart
				mustDecode(t, data, &c)
				if len(c.Prices) != ChartPoints {
					t.Errorf("len(prices) = %d, want %d", len(c.Prices), ChartPoints)
				}
			},
		},
		{
			name:     "trending",
			path:     "/search/trending",
			category: market.CategoryTrending,
			check: func(t *testing.T, data json.RawMessage) {
				var tr market.TrendingResponse
				mustDecode(t, data, &tr)
				if len(tr.Coins) != 4 {
					t.Errorf("len(trending) = %d, want 4", len(tr.Coins))
				}
			},
		},
		{
			name:     "exchanges",
			path:     "/exchanges?per_page=50&page=1",
			category: market.CategoryExchanges,
			check: func(t *testing.T, data json.RawMessage) {
				var ex []market.Exchange
				mustDecode(t, data, &ex)
				if len(ex) != 3 || ex[0].ID != "binance" {
					t.Errorf("exchanges = %+v, want binance first of 3", ex)
				}
			},
		},
		{
			name:     "search",
			path:     "/search?query=btc",
			category: market.CategorySearch,
			check: func(t *testing.T, data json.RawMessage) {
				var s market.SearchResults
				mustDecode(t, data, &s)
				if len(s.Coins) != 2 {
					t.Errorf("len(search coins) = %d, want 2", len(s.Coins))
				}
				if s.Exchanges == nil {
					t.Error("search exchanges = nil, want empty list")
				}
			},
		},
		{
			name:     "unknown object",
			path:     "/simple/price",
			category: market.CategoryUnknown,
			check: func(t *testing.T, data json.RawMessage) {
				if string(data) != "{}" {
					t.Errorf("data = %s, want {}", data)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, category := ForPath(tt.path, now)
			if category != tt.category {
				t.Errorf("category = %q, want %q", category, tt.category)
			}
			tt.check(t, data)
		})
	}
}

func TestChart(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	c := Chart(now)

	first := int64(c.Prices[0][0])
	last := int64(c.Prices[ChartPoints-1][0])
	if want := now.Add(-168 * time.Hour).UnixMilli(); first != want {
		t.Errorf("first timestamp = %d, want %d", first, want)
	}
	if want := now.Add(-time.Hour).UnixMilli(); last != want {
		t.Errorf("last timestamp = %d, want %d", last, want)
	}

	for i, p := range c.Prices {
		if p[1] < 90 || p[1] > 110 {
			t.Errorf("price[%d] = %v, want within 90..110", i, p[1])
		}
	}

	again := Chart(now)
	if again.TotalVolumes[17] != c.TotalVolumes[17] {
		t.Error("chart volumes differ between calls, want deterministic series")
	}
}

func TestCopiesAreIndependent(t *testing.T) {
	m := Markets()
	m[0].CurrentPrice = 1
	if Markets()[0].CurrentPrice != 48000 {
		t.Error("modifying Markets() result changed the fallback table")
	}

	c, _ := Coin("bitcoin")
	c.MarketData.CurrentPrice["usd"] = 1
	again, _ := Coin("bitcoin")
	if again.MarketData.CurrentPrice["usd"] != 48000 {
		t.Error("modifying Coin() result changed the fallback table")
	}
}

func TestCoins(t *testing.T) {
	ids := Coins()
	if len(ids) != 2 || ids[0] != "bitcoin" || ids[1] != "ethereum" {
		t.Errorf("Coins() = %v, want [bitcoin ethereum]", ids)
	}
}

func mustDecode(t *testing.T, data json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}
