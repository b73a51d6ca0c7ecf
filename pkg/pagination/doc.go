// Package pagination provides parallel batch fetching for paginated
// upstream listings such as /coins/markets.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher[[]market.Coin](
//		pagination.PageFetcherFunc[[]market.Coin](fetchMarketsPage),
//		pagination.DefaultConfig(),
//	)
//	pages, err := fetcher.FetchPages(ctx, 4)
//
// The batch fetcher:
//   - Runs up to MaxConcurrency page fetches at once (errgroup)
//   - Returns pages in page order regardless of completion order
//   - Cancels outstanding fetches on the first error
package pagination
