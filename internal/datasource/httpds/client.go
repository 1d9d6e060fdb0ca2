// Package httpds is the small HTTP layer under the Logs API client. It
// applies the base headers (OAuth token, User-Agent) to each request and
// waits on an optional token-bucket limiter so a run stays inside the
// service's per-token quota. Failed calls are not retried here.
package httpds

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config configures the client.
type Config struct {
	// Timeout bounds a whole exchange including reading the body. Zero
	// means 60s; part downloads can be large, so callers streaming them
	// pass a negative value to disable it.
	Timeout time.Duration

	// BaseHeaders are added to every request; per-request headers win.
	BaseHeaders http.Header

	// Limiter, when set, is waited on before every request.
	Limiter *rate.Limiter

	// Transport replaces http.DefaultTransport.
	Transport http.RoundTripper
}

// Client wraps an http.Client with base headers and a limiter.
type Client struct {
	httpClient  *http.Client
	baseHeaders http.Header
	limiter     *rate.Limiter
}

// NewClient constructs a Client from cfg.
func NewClient(cfg Config) *Client {
	switch {
	case cfg.Timeout == 0:
		cfg.Timeout = 60 * time.Second
	case cfg.Timeout < 0:
		cfg.Timeout = 0
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		baseHeaders: cfg.BaseHeaders.Clone(),
		limiter:     cfg.Limiter,
	}
}

// Do sends one request. A returned response always has a non-nil Body the
// caller must close; error statuses come back as responses so callers can
// decode the service's error payload.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers http.Header) (*http.Response, error) {
	if method == "" {
		return nil, fmt.Errorf("httpds: method must not be empty")
	}
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpds: rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpds: build request: %w", err)
	}
	for k, vs := range c.baseHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	return c.httpClient.Do(req)
}

// Get is Do with GET.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, headers)
}
