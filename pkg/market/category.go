package market

import "strings"

// Category groups upstream endpoints that share a fallback payload and a
// metrics label.
type Category string

const (
	CategoryCoin        Category = "coin"
	CategoryMarkets     Category = "markets"
	CategoryGlobal      Category = "global"
	CategoryMarketChart Category = "market_chart"
	CategoryTrending    Category = "trending"
	CategoryExchanges   Category = "exchanges"
	CategorySearch      Category = "search"
	CategoryUnknown     Category = "unknown"
)

// Categorize maps an endpoint path (query string allowed) to its category.
// For CategoryCoin the coin ID is returned as well.
//
// Precedence: coin detail, markets, global, market chart, trending,
// exchanges, search. "/search/trending" is therefore trending and
// "/coins/markets" is markets.
func Categorize(path string) (Category, string) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if id, ok := coinID(path); ok {
		return CategoryCoin, id
	}

	switch {
	case strings.Contains(path, "/coins/markets"):
		return CategoryMarkets, ""
	case strings.Contains(path, "/global"):
		return CategoryGlobal, ""
	case strings.Contains(path, "/market_chart"):
		return CategoryMarketChart, ""
	case strings.Contains(path, "/trending"):
		return CategoryTrending, ""
	case strings.Contains(path, "/exchanges"):
		return CategoryExchanges, ""
	case strings.Contains(path, "/search"):
		return CategorySearch, ""
	default:
		return CategoryUnknown, ""
	}
}

// coinID extracts {id} from ".../coins/{id}". Sub-resources and the
// markets listing are not coin detail paths.
func coinID(path string) (string, bool) {
	_, rest, found := strings.Cut(path, "/coins/")
	if !found {
		return "", false
	}
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || rest == "markets" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
