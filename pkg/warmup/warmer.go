// Package warmup pre-populates the market cache at startup so the first
// dashboard requests are served from cache.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	warmupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_warmup_runs_total",
		Help: "Total warmup runs by result",
	}, []string{"result"})

	warmupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "market_warmup_duration_seconds",
		Help:    "Duration of warmup runs in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Provider fetches one data set so it lands in the cache.
type Provider interface {
	// Name returns a human-readable name for logging purposes
	Name() string

	// Warmup fetches the data. It must be safe to call multiple times.
	Warmup(ctx context.Context) error
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context) error
}

// Name implements Provider.
func (p ProviderFunc) Name() string { return p.ProviderName }

// Warmup implements Provider.
func (p ProviderFunc) Warmup(ctx context.Context) error { return p.Fn(ctx) }

// Config configures the warming behavior.
type Config struct {
	// Timeout is the maximum duration to wait for all providers to complete
	Timeout time.Duration

	// ContinueOnError keeps warming sequential providers after a failure
	ContinueOnError bool

	// Parallel runs providers concurrently
	Parallel bool
}

// DefaultConfig returns sensible defaults for cache warming.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		ContinueOnError: true,
		Parallel:        true,
	}
}

// Result contains the result of warming a single provider.
type Result struct {
	Provider string
	Duration time.Duration
	Err      error
}

// Results contains the aggregate results of a warmup run, in
// registration order.
type Results struct {
	Results   []Result
	TotalTime time.Duration
	Errors    int
}

// HasErrors returns true if any provider failed during warmup.
func (r *Results) HasErrors() bool {
	return r.Errors > 0
}

// Err joins the provider errors, or returns nil.
func (r *Results) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Provider, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Warmer runs registered providers.
type Warmer struct {
	providers []Provider
	logger    zerolog.Logger
	config    Config
}

// NewWarmer creates a new warmer.
func NewWarmer(logger zerolog.Logger, config Config) *Warmer {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Warmer{
		logger: logger.With().Str("component", "warmup").Logger(),
		config: config,
	}
}

// Register adds providers to the warmer.
func (w *Warmer) Register(providers ...Provider) {
	w.providers = append(w.providers, providers...)
}

// Warmup executes all registered providers and returns their results.
func (w *Warmer) Warmup(ctx context.Context) *Results {
	start := time.Now()
	results := &Results{}

	if len(w.providers) == 0 {
		return results
	}

	// Apply timeout
	warmupCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if w.config.Parallel {
		results.Results = w.warmupParallel(warmupCtx)
	} else {
		results.Results = w.warmupSequential(warmupCtx)
	}

	// Count errors
	for _, r := range results.Results {
		if r.Err != nil {
			results.Errors++
		}
	}

	results.TotalTime = time.Since(start)
	warmupDuration.Observe(results.TotalTime.Seconds())

	// Log summary
	if results.Errors > 0 {
		warmupRunsTotal.WithLabelValues("partial").Inc()
		w.logger.Warn().
			Int("errors", results.Errors).
			Int("providers", len(w.providers)).
			Dur("took", results.TotalTime).
			Msg("Cache warmup completed with errors")
	} else {
		warmupRunsTotal.WithLabelValues("success").Inc()
		w.logger.Info().
			Int("providers", len(w.providers)).
			Dur("took", results.TotalTime).
			Msg("Cache warmup completed")
	}

	return results
}

// warmupParallel warms all providers concurrently.
func (w *Warmer) warmupParallel(ctx context.Context) []Result {
	results := make([]Result, len(w.providers))

	// Provider errors are carried in results, never returned to the group
	var g errgroup.Group
	for i, provider := range w.providers {
		g.Go(func() error {
			results[i] = w.warmupProvider(ctx, provider)
			return nil
		})
	}
	g.Wait()

	return results
}

// warmupSequential warms providers one at a time.
func (w *Warmer) warmupSequential(ctx context.Context) []Result {
	results := make([]Result, 0, len(w.providers))

	for _, provider := range w.providers {
		result := w.warmupProvider(ctx, provider)
		results = append(results, result)

		// Stop on first error if not configured to continue
		if result.Err != nil && !w.config.ContinueOnError {
			break
		}
	}

	return results
}

// warmupProvider warms a single provider and returns the result.
func (w *Warmer) warmupProvider(ctx context.Context, provider Provider) Result {
	start := time.Now()
	name := provider.Name()

	w.logger.Debug().Str("provider", name).Msg("Warming cache")

	err := provider.Warmup(ctx)
	if err == nil {
		err = ctx.Err()
	}
	duration := time.Since(start)

	if err != nil {
		w.logger.Warn().
			Err(err).
			Str("provider", name).
			Dur("took", duration).
			Msg("Cache warmup failed")
	} else {
		w.logger.Debug().
			Str("provider", name).
			Dur("took", duration).
			Msg("Cache warmup completed for provider")
	}

	return Result{
		Provider: name,
		Duration: duration,
		Err:      err,
	}
}
