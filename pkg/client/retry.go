package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	marketRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	marketRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "market_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 30},
	}, []string{"error_class"})

	marketRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// Jitter randomizes each wait by ±Jitter (0.2 = ±20%). 0 disables it.
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration:
// 3 retries waiting 2s, 4s and 8s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        8 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff returns the wait before retry n (1-based), without jitter.
func (rc RetryConfig) Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	backoff := float64(rc.InitialBackoff)
	for i := 1; i < n; i++ {
		backoff *= rc.BackoffMultiplier
	}
	if rc.MaxBackoff > 0 && backoff > float64(rc.MaxBackoff) {
		return rc.MaxBackoff
	}
	return time.Duration(backoff)
}

func (rc RetryConfig) withJitter(d time.Duration) time.Duration {
	if rc.Jitter <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 - rc.Jitter + rand.Float64()*2*rc.Jitter))
}

// attemptFunc runs one attempt and classifies its failure.
type attemptFunc func(attempt int) (ErrorClass, error)

// retryWithBackoff executes fn with exponential backoff retry logic.
// Only classes accepted by shouldRetry are retried. It respects context
// cancellation while waiting.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn attemptFunc) error {
	maxAttempts := config.MaxRetries + 1

	var lastErr error
	var errorClass ErrorClass

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		errorClass, lastErr = fn(attempt)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		// Check if we should retry this error
		if !shouldRetry(errorClass) {
			return lastErr
		}

		// If this was the last attempt, don't wait
		if attempt >= maxAttempts {
			break
		}

		marketRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		wait := config.withJitter(config.Backoff(attempt))
		marketRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(wait.Seconds())

		logger.Debug().
			Err(lastErr).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Int("retries_left", maxAttempts-attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		// Wait with context cancellation support
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	// All retries exhausted
	marketRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Warn().
		Err(lastErr).
		Str("error_class", string(errorClass)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}
