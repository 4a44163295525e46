// Package midgard fetches metric history from a THORChain Midgard instance.
package midgard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"midgard-history/internal/domain"
	"midgard-history/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL           = "https://midgard.ninerealms.com"
	DefaultTimeout           = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryDelay        = 2 * time.Second
	DefaultBackoffMult       = 2.0
	DefaultInterval          = "day"
	DefaultCount             = 100
	DefaultRequestsPerSecond = 5.0
)

// maxErrorBody bounds how much of an error response is kept in UpstreamError.
const maxErrorBody = 512

// Client fetches /v2/history/* series. It is safe for concurrent use.
type Client struct {
	baseURL     string
	client      *http.Client
	interval    string
	count       int
	maxRetries  int
	retryDelay  time.Duration
	backoffMult float64
	limiter     *rate.Limiter
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithMaxRetries sets how many times a 429 is retried before giving up.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the delay before the first retry. Each later retry doubles it.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithInterval sets the bucket width requested from Midgard (5min, hour, day, ...).
func WithInterval(interval string) ClientOption {
	return func(c *Client) {
		c.interval = interval
	}
}

// WithCount sets how many buckets each request asks for.
func WithCount(n int) ClientOption {
	return func(c *Client) {
		c.count = n
	}
}

// WithRateLimit throttles outbound requests. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSleep replaces the function used to wait between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient creates a Midgard client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		interval:    DefaultInterval,
		count:       DefaultCount,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		backoffMult: DefaultBackoffMult,
		limiter:     rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the intervals of one history series.
// pool is required for depth, optional for swaps and ignored otherwise.
func (c *Client) Fetch(ctx context.Context, family domain.Family, pool string) ([]RawInterval, error) {
	endpoint, err := c.endpoint(family, pool)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	intervals, err := c.fetch(ctx, family, endpoint)
	observability.RecordFetch(family.String(), time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched history", "family", family, "pool", pool, "intervals", len(intervals))
	return intervals, nil
}

func (c *Client) fetch(ctx context.Context, family domain.Family, endpoint string) ([]RawInterval, error) {
	body, err := c.get(ctx, family, endpoint)
	if err != nil {
		return nil, err
	}
	return decodeIntervals(body)
}

// endpoint builds the request URL for a family.
func (c *Client) endpoint(family domain.Family, pool string) (string, error) {
	query := url.Values{}
	query.Set("interval", c.interval)
	query.Set("count", strconv.Itoa(c.count))

	var path string
	switch family {
	case domain.FamilyDepth:
		if pool == "" {
			return "", fmt.Errorf("depth history requires a pool")
		}
		path = "/v2/history/depths/" + url.PathEscape(pool)
	case domain.FamilySwaps:
		path = "/v2/history/swaps"
		if pool != "" {
			query.Set("pool", pool)
		}
	case domain.FamilyEarnings:
		path = "/v2/history/earnings"
	case domain.FamilyRunePool:
		path = "/v2/history/runepool"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}

	return c.baseURL + path + "?" + query.Encode(), nil
}

// get performs a GET, retrying only on 429 with exponential backoff.
func (c *Client) get(ctx context.Context, family domain.Family, endpoint string) ([]byte, error) {
	schedule := c.newBackOff()

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			delay := schedule.NextBackOff()
			if delay == backoff.Stop {
				return nil, fmt.Errorf("%w: %s after %d attempts", ErrRateLimitExceeded, family, attempt)
			}
			observability.RecordRateLimited(family.String())
			c.logger.Warn("rate limited by midgard, retrying",
				"family", family, "attempt", attempt, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &UpstreamError{Status: resp.StatusCode, Body: truncate(body, maxErrorBody)}
		default:
			return body, nil
		}
	}
}

// newBackOff returns the retry schedule: retryDelay, then multiplied by backoffMult,
// for at most maxRetries delays. There is no jitter.
func (c *Client) newBackOff() backoff.BackOff {
	if c.maxRetries <= 0 {
		return &backoff.StopBackOff{}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryDelay
	exp.Multiplier = c.backoffMult
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Duration(float64(c.retryDelay) * pow(c.backoffMult, c.maxRetries))
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithMaxRetries(exp, uint64(c.maxRetries))
}

func pow(base float64, n int) float64 {
	result := 1.0
	for range n {
		result *= base
	}
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
