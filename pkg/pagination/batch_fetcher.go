package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page fetches.
	// The upstream client gates and paces requests on its own; this only
	// bounds the number of goroutines waiting on it.
	MaxConcurrency int

	// Timeout per page fetch. 0 disables the per-page timeout.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
	}
}

// PageFetcher fetches a single page. Pages are numbered from 1.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, page int) (T, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, page int) (T, error)

// FetchPage calls f(ctx, page).
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, page int) (T, error) {
	return f(ctx, page)
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](fetcher PageFetcher[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchPages fetches pages 1..pages in parallel and returns the results in
// page order. The first failing page cancels the remaining fetches.
func (bf *BatchFetcher[T]) FetchPages(ctx context.Context, pages int) ([]T, error) {
	if pages <= 0 {
		return nil, nil
	}

	start := time.Now()
	results := make([]T, pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for page := 1; page <= pages; page++ {
		g.Go(func() error {
			pageCtx := gctx
			if bf.config.Timeout > 0 {
				var cancel context.CancelFunc
				pageCtx, cancel = context.WithTimeout(gctx, bf.config.Timeout)
				defer cancel()
			}

			data, err := bf.fetcher.FetchPage(pageCtx, page)
			if err != nil {
				log.Warn().
					Err(err).
					Int("page", page).
					Msg("Page fetch failed")
				return fmt.Errorf("page %d: %w", page, err)
			}

			// Each goroutine owns its slot
			results[page-1] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().
		Int("pages", pages).
		Int("workers", bf.config.MaxConcurrency).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}
