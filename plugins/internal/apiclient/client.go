// Package apiclient is the resilient JSON-over-HTTP client shared by the
// provider plugins: retries through retryablehttp, a circuit breaker per
// provider and an optional rate limiter.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/metadata"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const maxBodySize = 4 << 20

// Options configures a Client.
type Options struct {
	// Name is the provider name used in errors and the breaker.
	Name       string
	HTTPClient *http.Client
	UserAgent  string
	RetryMax   int
	// Limiter throttles outgoing requests when set.
	Limiter *rate.Limiter
	Logger  engine.Logger
}

// Client performs provider API calls.
type Client struct {
	name      string
	retry     *retryablehttp.Client
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	userAgent string
	logger    engine.Logger
}

// New creates a client with retry and circuit breaker.
func New(opts Options) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	if opts.RetryMax > 0 {
		client.RetryMax = opts.RetryMax
	}
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.HTTPClient != nil {
		client.HTTPClient = opts.HTTPClient
	}

	settings := gobreaker.Settings{
		Name:        opts.Name + "-api",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// an empty answer is not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, metadata.ErrNotFound) || errors.Is(err, metadata.ErrNoMatch)
		},
	}

	return &Client{
		name:      opts.Name,
		retry:     client,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		limiter:   opts.Limiter,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// GetJSON fetches rawURL and returns the body of a 200 response. Non-200
// statuses map onto the metadata sentinels.
func (c *Client) GetJSON(ctx context.Context, op, rawURL string, header http.Header) ([]byte, error) {
	var body []byte
	err := c.execute(ctx, func() error {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.retry.Do(req)
		if err != nil {
			return metadata.NewProviderError(c.name, op, fmt.Errorf("%w: %v", metadata.ErrUnavailable, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return metadata.StatusError(c.name, op, resp.StatusCode)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return metadata.NewProviderError(c.name, op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) execute(ctx context.Context, fn func() error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		if c.logger != nil {
			c.logger.Warn("provider circuit open", "provider", c.name)
		}
		return metadata.NewProviderError(c.name, "execute", fmt.Errorf("%w: %v", metadata.ErrUnavailable, err))
	}
	return err
}
