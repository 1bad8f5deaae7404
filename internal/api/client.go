package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Defaults
const (
	DefaultTimeout   = 5 * time.Second
	maxErrorBodySize = 512
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Timeout    time.Duration // Per-attempt HTTP timeout
	Retry      RetryConfig
	HTTPClient *http.Client // Overrides Timeout when set
	Logger     *slog.Logger
	UserAgent  string
}

// Client calls the remote health-service API
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a client for the API rooted at baseURL (including any
// /api prefix, e.g. https://example.com/api)
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "medsearch"
	}

	return &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: opts.HTTPClient,
		retry:      opts.Retry,
		logger:     opts.Logger.With("component", "api"),
		userAgent:  opts.UserAgent,
	}, nil
}

// BaseURL returns the API root the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON issues a GET and decodes the JSON body into out
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	startTime := time.Now()
	_, err := retryWithBackoff(ctx, c.retry, func() (struct{}, error) {
		return struct{}{}, c.attempt(ctx, method, endpoint, payload, out)
	})

	c.logger.Debug("api call",
		"method", method,
		"path", path,
		"duration", time.Since(startTime),
		"error", err,
	)
	return err
}

// attempt performs one HTTP round trip. Errors that cannot be fixed by
// retrying are marked permanent.
func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return permanent(fmt.Errorf("%w: create request: %v", ErrRequestFailed, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
		if statusErr.Retryable() {
			return statusErr
		}
		return permanent(statusErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return permanent(fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err))
	}
	return nil
}
