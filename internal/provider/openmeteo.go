// Package provider implements thin clients for the Open-Meteo forecast and
// marine APIs. Adapters translate the remote wire format into model rows and
// nothing else: no caching, no merging, no timezone conversion.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lbrouwer/surfcast/internal/httputil"
	"github.com/lbrouwer/surfcast/internal/metrics"
)

// ErrUnavailable marks an upstream HTTP failure that survived the retry
// schedule. Callers record it per step and move on.
var ErrUnavailable = errors.New("provider unavailable")

const (
	defaultWeatherURL = "https://api.open-meteo.com/v1/forecast"
	defaultMarineURL  = "https://marine-api.open-meteo.com/v1/marine"

	forecastDays = 16

	retryAttempts = 5
	retryBase     = 200 * time.Millisecond
)

type Client struct {
	http       *http.Client
	weatherURL string
	marineURL  string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		http:       httputil.NewClient(timeout),
		weatherURL: defaultWeatherURL,
		marineURL:  defaultMarineURL,
	}
}

// NewClientWithURLs is used by tests to point the adapter at a fake server.
func NewClientWithURLs(timeout time.Duration, weatherURL, marineURL string) *Client {
	c := NewClient(timeout)
	c.weatherURL = weatherURL
	c.marineURL = marineURL
	return c
}

// get fetches one provider URL under the bounded retry envelope: 5 attempts
// with exponential backoff from a 0.2s base. Rate limiting and server errors
// retry; other non-200 statuses fail immediately.
func (c *Client) get(ctx context.Context, provider, rawURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		metrics.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ProviderCallsTotal.WithLabelValues(provider, "error").Inc()
			return fmt.Errorf("fetch %s: %w", provider, err)
		}
		defer resp.Body.Close()

		metrics.ProviderCallsTotal.WithLabelValues(provider, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("fetch %s: status %d", provider, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", provider, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBase
	bo.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, retryAttempts-1), ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}

func (c *Client) buildURL(base string, lat, lon float64, extra url.Values) string {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.6f", lat))
	q.Set("longitude", fmt.Sprintf("%.6f", lon))
	q.Set("forecast_days", fmt.Sprintf("%d", forecastDays))
	q.Set("timeformat", "unixtime")
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return base + "?" + q.Encode()
}

func fetchAndDecode[T any](ctx context.Context, c *Client, provider, rawURL string) (*T, error) {
	body, err := c.get(ctx, provider, rawURL)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s response: %w", provider, err)
	}
	return &out, nil
}
