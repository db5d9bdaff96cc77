// Package fetch
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"erddap-mirror/packages/metrics"
)

const userAgent = "erddap-mirror/1.0"

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status code %d for %s", e.Code, e.URL)
}

// IsClientError reports whether err is an HTTP 4xx response.
func IsClientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code >= 400 && se.Code < 500
}

type Client struct {
	client *http.Client
	logger *slog.Logger
}

func New(timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch performs a single blocking GET and returns the full response body.
// There is no retry here; callers layer their own fallback policy on top.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	c.logger.Debug("Fetching URL", "url", rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.FetchesTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
		c.logger.Debug("Fetch returned bad status code", "url", rawURL, "status_code", resp.StatusCode)
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("truncated_body").Inc()
		return nil, fmt.Errorf("reading body of %s: %w", rawURL, err)
	}

	metrics.FetchesTotal.WithLabelValues("ok").Inc()
	metrics.FetchedBytes.Add(float64(len(body)))
	return body, nil
}
