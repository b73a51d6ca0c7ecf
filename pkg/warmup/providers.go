package warmup

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/crypto-market-client/pkg/client"
)

// ErrNotWarmed is returned by market providers whose data came from stale
// cache or fallback instead of the upstream or a fresh cache entry.
var ErrNotWarmed = errors.New("data not warmed")

// MarketProviders returns providers for the dashboard landing data:
// the first markets page, global stats, trending coins and exchanges.
func MarketProviders(c *client.Client) []Provider {
	return []Provider{
		marketProvider("markets", func(ctx context.Context) (client.Source, error) {
			d := c.GetCoins(ctx, 1, 100)
			return d.Source, d.Err
		}),
		marketProvider("global", func(ctx context.Context) (client.Source, error) {
			d := c.GetGlobalData(ctx)
			return d.Source, d.Err
		}),
		marketProvider("trending", func(ctx context.Context) (client.Source, error) {
			d := c.GetTrendingCoins(ctx)
			return d.Source, d.Err
		}),
		marketProvider("exchanges", func(ctx context.Context) (client.Source, error) {
			d := c.GetExchanges(ctx, 1, 50)
			return d.Source, d.Err
		}),
	}
}

func marketProvider(name string, fetch func(ctx context.Context) (client.Source, error)) Provider {
	return ProviderFunc{
		ProviderName: name,
		Fn: func(ctx context.Context) error {
			source, cause := fetch(ctx)
			if source.Degraded() {
				if cause != nil {
					return fmt.Errorf("%w (%s): %w", ErrNotWarmed, source, cause)
				}
				return fmt.Errorf("%w (%s)", ErrNotWarmed, source)
			}
			return nil
		},
	}
}
