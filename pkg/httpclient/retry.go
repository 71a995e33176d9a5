package httpclient

import (
	"math"
	"math/rand"
	"net/http"
	"time"
)

// retryTransport wraps an http.RoundTripper to add retry with
// exponential backoff and jitter. Only idempotent methods are retried.
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	baseBackoff time.Duration
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	return &retryTransport{
		base:        base,
		maxAttempts: cfg.RetryAttempts + 1, // attempts include the initial try
		baseBackoff: cfg.RetryBackoff,
	}
}

// RoundTrip implements http.RoundTripper with retry logic.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotent(req.Method) {
		return t.base.RoundTrip(req)
	}

	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(t.backoff(attempt - 1)):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			lastErr = err
			continue
		}

		if !isRetryableStatus(resp.StatusCode) || attempt == t.maxAttempts {
			return resp, nil
		}

		// Close so the connection can be reused before retrying.
		resp.Body.Close()
	}

	// Only reachable when every attempt failed with a transport error;
	// retryable responses are returned on the final attempt above.
	return nil, lastErr
}

// backoff computes the delay before the given retry with full jitter.
func (t *retryTransport) backoff(retry int) time.Duration {
	delay := float64(t.baseBackoff) * math.Pow(2, float64(retry-1))
	return time.Duration(rand.Float64() * delay)
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
