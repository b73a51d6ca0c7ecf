package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultDuration is the freshness used when none is given
	DefaultDuration = 5 * time.Minute
)

// ResponseToEntry converts an HTTP response to a CacheEntry that stays
// fresh for duration. The response body is restored after reading.
func ResponseToEntry(resp *http.Response, duration time.Duration) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	// Read body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if duration <= 0 {
		duration = DefaultDuration
	}

	entry := &CacheEntry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		CachedAt:   time.Now(),
		Duration:   duration,
	}

	// Parse Last-Modified header
	if lastModStr := resp.Header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry, nil
}

// Revalidated returns a copy of entry refreshed by a 304 Not Modified
// response. Validators sent with the 304 replace the cached ones.
func Revalidated(entry *CacheEntry, resp *http.Response) *CacheEntry {
	refreshed := entry.Clone()
	refreshed.CachedAt = time.Now()

	if resp != nil {
		if etag := resp.Header.Get("ETag"); etag != "" {
			refreshed.ETag = etag
		}
		if lastModStr := resp.Header.Get("Last-Modified"); lastModStr != "" {
			if lastMod, err := http.ParseTime(lastModStr); err == nil {
				refreshed.LastModified = lastMod
			}
		}
	}

	ConditionalRequests.Inc()
	return refreshed
}

// ShouldMakeConditionalRequest determines if we should add conditional
// request headers (If-None-Match or If-Modified-Since) based on the cache entry.
func ShouldMakeConditionalRequest(entry *CacheEntry) bool {
	if entry == nil {
		return false
	}
	// We can make a conditional request if we have either ETag or Last-Modified
	return entry.ETag != "" || !entry.LastModified.IsZero()
}

// AddConditionalHeaders adds If-None-Match (ETag) or If-Modified-Since headers
// to the request if the cache entry supports conditional requests.
func AddConditionalHeaders(req *http.Request, entry *CacheEntry) {
	if entry == nil || req == nil {
		return
	}

	// Prefer ETag over Last-Modified (more accurate)
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.Format(http.TimeFormat))
	}
}
