package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// MaxBodySize caps how much of a page or script is read.
const MaxBodySize = 10 << 20

// ErrStatus is returned by Fetch for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

// Options configure a Client.
type Options struct {
	Timeout     time.Duration
	Proxy       string
	Concurrency int
	// RateLimit is in requests per second; 0 disables limiting.
	RateLimit float64
	UserAgent string
}

// Client wraps http.Client with retry logic and rate limiting.
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	UserAgent  string
	MaxRetries int
}

// NewClient creates a Client with connection pooling sized for concurrency.
func NewClient(opts Options) (*Client, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		MaxIdleConns:        concurrency * 2,
		MaxIdleConnsPerHost: max(concurrency/2, 10),
		MaxConnsPerHost:     concurrency,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.Proxy != "" {
		pURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(pURL)
	}

	return &Client{
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		Limiter:    NewLimiter(opts.RateLimit),
		UserAgent:  opts.UserAgent,
		MaxRetries: 3,
	}, nil
}

// Do sends an HTTP request with automatic retries and rate limiting.
// 5xx responses, 429 and transport errors are retried with exponential
// backoff: 100ms, 200ms, 400ms.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	var resp *http.Response
	var err error

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			backoff := time.Duration(math.Pow(2, float64(i-1))*100) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := Wait(ctx, c.Limiter); err != nil {
			return nil, err
		}

		resp, err = c.HTTPClient.Do(req)
		if err == nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Close body if we are going to retry
		if resp != nil && i < c.MaxRetries {
			resp.Body.Close()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", c.MaxRetries, err)
	}
	return resp, nil
}

// Fetch GETs rawURL and returns at most MaxBodySize bytes of its body.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d fetching %s", ErrStatus, resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}
