// Package httputil provides the outbound HTTP client used for upstream data
// sources and the JSON response helpers used by the API.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxBody caps upstream response bodies. The full country directory is
// well under this.
const DefaultMaxBody = 16 << 20

// ErrBodyTooLarge is returned when a response exceeds the configured limit.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client fetches upstream documents with a bounded timeout and body size.
type Client struct {
	httpClient *http.Client
	maxBody    int64
	userAgent  string
}

// ClientConfig configures the client.
type ClientConfig struct {
	Timeout   time.Duration
	MaxBody   int64
	UserAgent string
	Transport http.RoundTripper
}

// NewClient creates a new upstream client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "country-service/1.0"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: cfg.Transport},
		maxBody:    maxBody,
		userAgent:  userAgent,
	}
}

// GetBytes performs a GET and returns the body of a 2xx response.
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, truncated, _ := ReadAllWithLimit(resp.Body, 4<<10)
		msg := strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: msg}
	}

	body, err := ReadAllStrict(resp.Body, c.maxBody)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// ReadAllWithLimit reads at most limit bytes and reports whether more remained.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

// ReadAllStrict reads r fully, failing with ErrBodyTooLarge past limit.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	body, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// Host returns the host part of rawURL, or rawURL itself if it does not parse.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
