// Package market defines the CoinGecko v3 payload shapes consumed by the
// dashboard and the endpoint categories used for caching and fallback.
package market

// Coin is one row of the /coins/markets listing.
type Coin struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	MarketCapRank            int     `json:"market_cap_rank"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	CirculatingSupply        float64 `json:"circulating_supply"`
}

// CoinDetail is the /coins/{id} document.
type CoinDetail struct {
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	Name        string            `json:"name"`
	Image       CoinImage         `json:"image"`
	MarketData  CoinMarketData    `json:"market_data"`
	Description map[string]string `json:"description"`
	Categories  []string          `json:"categories"`
	Links       CoinLinks         `json:"links"`
}

// CoinImage holds the image URLs of a coin.
type CoinImage struct {
	Thumb string `json:"thumb,omitempty"`
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// CoinMarketData holds per-currency market figures of a coin.
// Maps are keyed by vs-currency ("usd").
type CoinMarketData struct {
	CurrentPrice              map[string]float64 `json:"current_price"`
	MarketCap                 map[string]float64 `json:"market_cap"`
	TotalVolume               map[string]float64 `json:"total_volume"`
	CirculatingSupply         float64            `json:"circulating_supply"`
	TotalSupply               *float64           `json:"total_supply"`
	PriceChangePercentage24h  float64            `json:"price_change_percentage_24h"`
	PriceChangePercentage7d   float64            `json:"price_change_percentage_7d"`
	PriceChangePercentage30d  float64            `json:"price_change_percentage_30d"`
	PriceChangePercentage1y   float64            `json:"price_change_percentage_1y"`
	ATH                       map[string]float64 `json:"ath"`
	ATHChangePercentage       map[string]float64 `json:"ath_change_percentage"`
	Low24h                    map[string]float64 `json:"low_24h"`
	High24h                   map[string]float64 `json:"high_24h"`
}

// CoinLinks holds external links of a coin.
type CoinLinks struct {
	Homepage       []string `json:"homepage"`
	BlockchainSite []string `json:"blockchain_site"`
}

// MarketChart is the /coins/{id}/market_chart series.
// Each point is [unix_millis, value].
type MarketChart struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
	MarketCaps   [][2]float64 `json:"market_caps"`
}

// TrendingResponse is the /search/trending document.
type TrendingResponse struct {
	Coins []TrendingCoin `json:"coins"`
}

// TrendingCoin wraps a trending item.
type TrendingCoin struct {
	Item TrendingItem `json:"item"`
}

// TrendingItem is a single trending coin.
type TrendingItem struct {
	ID                          string  `json:"id"`
	Name                        string  `json:"name"`
	Symbol                      string  `json:"symbol"`
	Thumb                       string  `json:"thumb"`
	Small                       string  `json:"small"`
	MarketCapRank               int     `json:"market_cap_rank"`
	PriceBTC                    float64 `json:"price_btc"`
	PriceBTCChangePercentage24h float64 `json:"price_btc_change_percentage_24h"`
}

// GlobalResponse is the /global document.
type GlobalResponse struct {
	Data GlobalData `json:"data"`
}

// GlobalData holds aggregate market statistics.
type GlobalData struct {
	ActiveCryptocurrencies          int                `json:"active_cryptocurrencies"`
	Markets                         int                `json:"markets"`
	TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
	TotalVolume                     map[string]float64 `json:"total_volume"`
	MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
}

// Exchange is one row of the /exchanges listing.
type Exchange struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	YearEstablished   int     `json:"year_established"`
	Country           string  `json:"country"`
	URL               string  `json:"url"`
	Image             string  `json:"image"`
	TrustScore        int     `json:"trust_score"`
	TrustScoreRank    int     `json:"trust_score_rank"`
	TradeVolume24hBTC float64 `json:"trade_volume_24h_btc"`
}

// SearchResults is the /search document.
type SearchResults struct {
	Coins     []SearchCoin     `json:"coins"`
	Exchanges []SearchExchange `json:"exchanges"`
}

// SearchCoin is a coin match of a search.
type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
	Thumb         string `json:"thumb"`
}

// SearchExchange is an exchange match of a search.
type SearchExchange struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MarketType string `json:"market_type"`
	Thumb      string `json:"thumb"`
}
