package client

import (
	"errors"
	"fmt"
)

// Common errors returned by Do and carried in degraded results.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the upstream answers 429.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrRequestBlocked is returned when a request is not sent because a
	// rate limit block window is still open.
	ErrRequestBlocked = errors.New("request blocked: upstream rate limit in effect")

	// ErrInvalidPayload is returned when a response body is not usable JSON.
	ErrInvalidPayload = errors.New("invalid payload")
)

// MarketError represents an upstream failure with additional context.
type MarketError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *MarketError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MarketError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassNetwork:
		// Transport failures and attempt timeouts are transient
		return true
	case ErrorClassRateLimit:
		// 429 is never retried; the block window gates further requests
		return false
	case ErrorClassClient, ErrorClassServer:
		// HTTP errors degrade to cached or fallback data immediately
		return false
	default:
		return false
	}
}
