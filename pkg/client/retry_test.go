package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 2*time.Second {
		t.Errorf("InitialBackoff = %v, want 2s", config.InitialBackoff)
	}
	if config.MaxBackoff != 8*time.Second {
		t.Errorf("MaxBackoff = %v, want 8s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
	if config.Jitter != 0 {
		t.Errorf("Jitter = %v, want 0", config.Jitter)
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	config := DefaultRetryConfig()

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 8 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := config.Backoff(tt.retry); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func(attempt int) (ErrorClass, error) {
		attempts++
		return "", nil
	})

	if err != nil {
		t.Errorf("retryWithBackoff() error = %v, want nil", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func(attempt int) (ErrorClass, error) {
		attempts++
		if attempt != attempts {
			t.Errorf("attempt = %d, want %d", attempt, attempts)
		}
		if attempts < 3 {
			return ErrorClassNetwork, errors.New("i/o timeout")
		}
		return "", nil
	})

	if err != nil {
		t.Errorf("retryWithBackoff() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	lastErr := errors.New("connection refused")
	attempts := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func(attempt int) (ErrorClass, error) {
		attempts++
		return ErrorClassNetwork, lastErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("error = %v, want to wrap last error", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4 (initial + 3 retries)", attempts)
	}
}

func TestRetryWithBackoff_ZeroRetries(t *testing.T) {
	config := fastRetryConfig()
	config.MaxRetries = 0

	attempts := 0
	err := retryWithBackoff(context.Background(), config, zerolog.Nop(), func(attempt int) (ErrorClass, error) {
		attempts++
		return ErrorClassNetwork, errors.New("reset")
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableClasses(t *testing.T) {
	for _, class := range []ErrorClass{ErrorClassClient, ErrorClassServer, ErrorClassRateLimit} {
		t.Run(string(class), func(t *testing.T) {
			wantErr := &MarketError{StatusCode: 500, ErrorClass: class, Message: "failed"}

			attempts := 0
			err := retryWithBackoff(context.Background(), fastRetryConfig(), zerolog.Nop(), func(attempt int) (ErrorClass, error) {
				attempts++
				return class, wantErr
			})

			if err != wantErr {
				t.Errorf("error = %v, want the attempt error unchanged", err)
			}
			if attempts != 1 {
				t.Errorf("attempts = %d, want 1", attempts)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	config := fastRetryConfig()
	config.InitialBackoff = time.Second
	config.MaxBackoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	start := time.Now()
	err := retryWithBackoff(ctx, config, zerolog.Nop(), func(attempt int) (ErrorClass, error) {
		attempts++
		return ErrorClassNetwork, errors.New("timeout")
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("backoff not interrupted, took %v", elapsed)
	}
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	config := RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2,
	}

	var stamps []time.Time
	retryWithBackoff(context.Background(), config, zerolog.Nop(), func(attempt int) (ErrorClass, error) {
		stamps = append(stamps, time.Now())
		return ErrorClassNetwork, errors.New("timeout")
	})

	if len(stamps) != 4 {
		t.Fatalf("attempts = %d, want 4", len(stamps))
	}

	// Waits of 10ms, 20ms, 40ms
	for i, want := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond} {
		if got := stamps[i+1].Sub(stamps[i]); got < want {
			t.Errorf("wait %d = %v, want >= %v", i+1, got, want)
		}
	}
}

func TestRetryConfig_Jitter(t *testing.T) {
	config := RetryConfig{Jitter: 0.2}
	base := 100 * time.Millisecond

	for range 100 {
		got := config.withJitter(base)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("withJitter(%v) = %v, want within ±20%%", base, got)
		}
	}

	if got := (RetryConfig{}).withJitter(base); got != base {
		t.Errorf("withJitter without jitter = %v, want %v", got, base)
	}
}
