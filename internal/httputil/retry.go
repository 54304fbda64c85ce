// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP retry helper shared by the live
// connectors.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

// MaxRetryAfter caps how long a server-provided Retry-After is honored.
var MaxRetryAfter = 2 * time.Minute

const defaultMaxRetries = 5

// StatusOverloaded is the non-standard status the Anthropic API returns
// when it is overloaded.
const StatusOverloaded = 529

// Retryable reports whether a response status is worth retrying: rate
// limited, overloaded or temporarily unavailable.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, StatusOverloaded:
		return true
	}
	return false
}

// DoWithRetry executes req and retries retryable responses with
// exponential backoff starting at RetryBaseDelay. A Retry-After header in
// seconds overrides the computed delay, up to MaxRetryAfter.
//
// When maxRetries is 0 the default (5) is used. The body of a retried
// response is drained and closed before sleeping. If ctx is cancelled
// during a wait the function returns ctx.Err(). After exhausting retries
// the last response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, logger *zap.Logger) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}
		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			backoff = d
		}
		logger.Warn("request throttled, retrying",
			zap.String("host", req.URL.Host),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", backoff),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryAfter(h string) (time.Duration, bool) {
	secs, err := strconv.Atoi(h)
	if err != nil || secs < 0 {
		return 0, false
	}
	return min(time.Duration(secs)*time.Second, MaxRetryAfter), true
}
