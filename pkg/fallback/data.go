package fallback

import (
	"math"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/market"
)

const imageBase = "https://assets.coingecko.com/coins/images/"

var markets = []market.Coin{
	{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", Image: imageBase + "1/large/bitcoin.png", CurrentPrice: 48000, MarketCap: 950000000000, MarketCapRank: 1, TotalVolume: 25000000000, PriceChangePercentage24h: 2.5, CirculatingSupply: 19000000},
	{ID: "ethereum", Symbol: "eth", Name: "Ethereum", Image: imageBase + "279/large/ethereum.png", CurrentPrice: 2800, MarketCap: 340000000000, MarketCapRank: 2, TotalVolume: 15000000000, PriceChangePercentage24h: 1.8, CirculatingSupply: 120000000},
	{ID: "tether", Symbol: "usdt", Name: "Tether", Image: imageBase + "325/large/Tether.png", CurrentPrice: 1, MarketCap: 95000000000, MarketCapRank: 3, TotalVolume: 50000000000, PriceChangePercentage24h: 0.1, CirculatingSupply: 95000000000},
	{ID: "binancecoin", Symbol: "bnb", Name: "BNB", Image: imageBase + "825/large/bnb-icon2_2x.png", CurrentPrice: 380, MarketCap: 58000000000, MarketCapRank: 4, TotalVolume: 1500000000, PriceChangePercentage24h: -0.5, CirculatingSupply: 153000000},
	{ID: "solana", Symbol: "sol", Name: "Solana", Image: imageBase + "4128/large/solana.png", CurrentPrice: 120, MarketCap: 52000000000, MarketCapRank: 5, TotalVolume: 2000000000, PriceChangePercentage24h: 3.2, CirculatingSupply: 430000000},
	{ID: "ripple", Symbol: "xrp", Name: "XRP", Image: imageBase + "44/large/xrp-symbol-white-128.png", CurrentPrice: 0.5, MarketCap: 28000000000, MarketCapRank: 6, TotalVolume: 1000000000, PriceChangePercentage24h: -1.2, CirculatingSupply: 56000000000},
	{ID: "cardano", Symbol: "ada", Name: "Cardano", Image: imageBase + "975/large/cardano.png", CurrentPrice: 0.4, MarketCap: 14000000000, MarketCapRank: 7, TotalVolume: 500000000, PriceChangePercentage24h: 0.8, CirculatingSupply: 35000000000},
	{ID: "dogecoin", Symbol: "doge", Name: "Dogecoin", Image: imageBase + "5/large/dogecoin.png", CurrentPrice: 0.08, MarketCap: 11000000000, MarketCapRank: 8, TotalVolume: 600000000, PriceChangePercentage24h: 1.5, CirculatingSupply: 140000000000},
	{ID: "polkadot", Symbol: "dot", Name: "Polkadot", Image: imageBase + "12171/large/polkadot.png", CurrentPrice: 6.5, MarketCap: 8500000000, MarketCapRank: 9, TotalVolume: 300000000, PriceChangePercentage24h: -0.7, CirculatingSupply: 1300000000},
	{ID: "shiba-inu", Symbol: "shib", Name: "Shiba Inu", Image: imageBase + "11939/large/shiba.png", CurrentPrice: 0.00001, MarketCap: 6000000000, MarketCapRank: 10, TotalVolume: 200000000, PriceChangePercentage24h: 2.1, CirculatingSupply: 589000000000000},
}

var global = market.GlobalResponse{
	Data: market.GlobalData{
		ActiveCryptocurrencies:          10000,
		TotalMarketCap:                  map[string]float64{"usd": 2500000000000},
		TotalVolume:                     map[string]float64{"usd": 150000000000},
		MarketCapPercentage:             map[string]float64{"btc": 45, "eth": 18},
		MarketCapChangePercentage24hUSD: 0.5,
	},
}

var trending = market.TrendingResponse{
	Coins: []market.TrendingCoin{
		{Item: market.TrendingItem{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Thumb: imageBase + "1/thumb/bitcoin.png", Small: imageBase + "1/small/bitcoin.png", MarketCapRank: 1, PriceBTC: 1, PriceBTCChangePercentage24h: 0}},
		{Item: market.TrendingItem{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Thumb: imageBase + "279/thumb/ethereum.png", Small: imageBase + "279/small/ethereum.png", MarketCapRank: 2, PriceBTC: 0.06, PriceBTCChangePercentage24h: 1.2}},
		{Item: market.TrendingItem{ID: "solana", Name: "Solana", Symbol: "SOL", Thumb: imageBase + "4128/thumb/solana.png", Small: imageBase + "4128/small/solana.png", MarketCapRank: 5, PriceBTC: 0.0025, PriceBTCChangePercentage24h: 3.5}},
		{Item: market.TrendingItem{ID: "binancecoin", Name: "BNB", Symbol: "BNB", Thumb: imageBase + "825/thumb/bnb-icon2_2x.png", Small: imageBase + "825/small/bnb-icon2_2x.png", MarketCapRank: 4, PriceBTC: 0.008, PriceBTCChangePercentage24h: -0.3}},
	},
}

var exchanges = []market.Exchange{
	{ID: "binance", Name: "Binance", YearEstablished: 2017, Country: "Cayman Islands", URL: "https://www.binance.com", Image: "https://assets.coingecko.com/markets/images/52/small/binance.jpg", TrustScore: 10, TrustScoreRank: 1, TradeVolume24hBTC: 500000},
	{ID: "coinbase", Name: "Coinbase Exchange", YearEstablished: 2012, Country: "United States", URL: "https://www.coinbase.com", Image: "https://assets.coingecko.com/markets/images/23/small/Coinbase_Coin_Primary.png", TrustScore: 10, TrustScoreRank: 2, TradeVolume24hBTC: 120000},
	{ID: "kraken", Name: "Kraken", YearEstablished: 2011, Country: "United States", URL: "https://www.kraken.com", Image: "https://assets.coingecko.com/markets/images/29/small/kraken.jpg", TrustScore: 10, TrustScoreRank: 3, TradeVolume24hBTC: 80000},
}

var search = market.SearchResults{
	Coins: []market.SearchCoin{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", MarketCapRank: 1, Thumb: imageBase + "1/thumb/bitcoin.png"},
		{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", MarketCapRank: 2, Thumb: imageBase + "279/thumb/ethereum.png"},
	},
	Exchanges: []market.SearchExchange{},
}

func usd(v float64) map[string]float64 { return map[string]float64{"usd": v} }

func ptr(v float64) *float64 { return &v }

var coins = map[string]market.CoinDetail{
	"bitcoin": {
		ID:     "bitcoin",
		Symbol: "btc",
		Name:   "Bitcoin",
		Image:  market.CoinImage{Large: imageBase + "1/large/bitcoin.png"},
		MarketData: market.CoinMarketData{
			CurrentPrice:             usd(48000),
			MarketCap:                usd(950000000000),
			TotalVolume:              usd(25000000000),
			CirculatingSupply:        19000000,
			TotalSupply:              ptr(21000000),
			PriceChangePercentage24h: 2.5,
			PriceChangePercentage7d:  5.2,
			PriceChangePercentage30d: 10.5,
			PriceChangePercentage1y:  45.8,
			ATH:                      usd(69000),
			ATHChangePercentage:      usd(-30.5),
			Low24h:                   usd(47000),
			High24h:                  usd(49000),
		},
		Description: map[string]string{
			"en": "Bitcoin is the first decentralized cryptocurrency. It was created in 2009 by an unknown person or group of people using the pseudonym Satoshi Nakamoto. Bitcoin is a digital currency that uses cryptography for security and operates on a decentralized network.",
		},
		Categories: []string{"Cryptocurrency", "Layer 1"},
		Links: market.CoinLinks{
			Homepage:       []string{"https://bitcoin.org/"},
			BlockchainSite: []string{"https://blockchair.com/bitcoin/"},
		},
	},
	"ethereum": {
		ID:     "ethereum",
		Symbol: "eth",
		Name:   "Ethereum",
		Image:  market.CoinImage{Large: imageBase + "279/large/ethereum.png"},
		MarketData: market.CoinMarketData{
			CurrentPrice:             usd(2800),
			MarketCap:                usd(340000000000),
			TotalVolume:              usd(15000000000),
			CirculatingSupply:        120000000,
			PriceChangePercentage24h: 1.8,
			PriceChangePercentage7d:  3.5,
			PriceChangePercentage30d: 8.2,
			PriceChangePercentage1y:  30.5,
			ATH:                      usd(4800),
			ATHChangePercentage:      usd(-42),
			Low24h:                   usd(2750),
			High24h:                  usd(2850),
		},
		Description: map[string]string{
			"en": "Ethereum is a decentralized, open-source blockchain with smart contract functionality. Ether is the native cryptocurrency of the platform. It is the second-largest cryptocurrency by market capitalization, after Bitcoin.",
		},
		Categories: []string{"Cryptocurrency", "Smart Contract Platform", "Layer 1"},
		Links: market.CoinLinks{
			Homepage:       []string{"https://ethereum.org/"},
			BlockchainSite: []string{"https://etherscan.io/"},
		},
	},
}

// ChartPoints is the number of hourly points in the generated chart.
const ChartPoints = 168

// chart builds one week of hourly points ending one hour before now.
// Prices follow a ±10% sine around 100; volumes and caps follow a smaller
// phase-shifted wave so the series stays deterministic.
func chart(now time.Time) market.MarketChart {
	c := market.MarketChart{
		Prices:       make([][2]float64, ChartPoints),
		TotalVolumes: make([][2]float64, ChartPoints),
		MarketCaps:   make([][2]float64, ChartPoints),
	}
	end := now.UnixMilli()
	for i := 0; i < ChartPoints; i++ {
		ts := float64(end - int64(ChartPoints-i)*time.Hour.Milliseconds())
		phase := float64(i) / 10
		c.Prices[i] = [2]float64{ts, 100 * (1 + math.Sin(phase)*0.1)}
		c.TotalVolumes[i] = [2]float64{ts, 10000000 * (1 + math.Cos(phase)*0.2)}
		c.MarketCaps[i] = [2]float64{ts, 1000000000 * (1 + math.Sin(phase)*0.1)}
	}
	return c
}
