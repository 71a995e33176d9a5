// Package httpclient provides a shared HTTP client factory with
// consistent timeout, retry, and User-Agent behavior across the
// ensemble codebase.
//
// Example usage:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "ensemble-weather/1.0"
//	client, err := httpclient.New(cfg)
//	if err != nil {
//	    return err
//	}
//
//	resp, err := client.Get("https://api.example.com/resource")
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config controls client construction.
type Config struct {
	// Timeout is the total request timeout (includes retries).
	// Default: 30s. Must be > 0.
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts (0 = no retries).
	// Only idempotent methods (GET, HEAD, OPTIONS) are retried.
	RetryAttempts int

	// RetryBackoff is the initial backoff delay before the first retry.
	RetryBackoff time.Duration

	// UserAgent is the User-Agent header value. Required.
	UserAgent string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  100 * time.Millisecond,
		UserAgent:     "ensemble-http-client/1.0",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must not be negative, got %d", c.RetryAttempts)
	}
	if c.RetryAttempts > 0 && c.RetryBackoff <= 0 {
		return fmt.Errorf("retry backoff must be positive when retries are enabled")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent must not be empty")
	}
	return nil
}

// New creates a new HTTP client with the given configuration.
// The client uses TLS 1.2 minimum, connection pooling, a User-Agent
// header on every request, and optional idempotent-only retries with
// exponential backoff.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseTransport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	var transport http.RoundTripper = &userAgentTransport{
		base:      baseTransport,
		userAgent: cfg.UserAgent,
	}
	if cfg.RetryAttempts > 0 {
		transport = newRetryTransport(transport, cfg)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}

// userAgentTransport sets the User-Agent header when the caller hasn't.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
