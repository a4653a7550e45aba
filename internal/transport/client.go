// Package transport provides the HTTP client shared by the inventory source
// adapters: credentials, common headers, optional throttling and retries,
// and JSON response decoding into typed errors.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client performs requests on behalf of one named source.
type Client struct {
	source     string
	http       *http.Client
	auth       Authenticator
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithAuth sets the authenticator.
func WithAuth(auth Authenticator) Option {
	return func(c *Client) {
		if auth != nil {
			c.auth = auth
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRateLimit throttles requests to rps per second. Zero or less disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithRetries retries transient failures up to n times with exponential backoff
// starting at base.
func WithRetries(n int, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max(n, 0)
		if base > 0 {
			c.backoff = base
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for source.
func New(source string, opts ...Option) *Client {
	c := &Client{
		source:    source,
		http:      &http.Client{Timeout: DefaultHTTPTimeout},
		auth:      NoAuth{},
		userAgent: "shelf",
		backoff:   constants.RetryBackoff,
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the name the client reports in errors.
func (c *Client) Source() string {
	return c.source
}

// Do applies credentials and common headers, waits for the rate limiter and
// sends req. Cancellation errors are returned unwrapped.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.WrapAPI(c.source, 0, err)
		}
	}

	req = req.WithContext(ctx)
	c.auth.Apply(req)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.IsCanceled(err) || ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapAPI(c.source, 0, err)
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+url, err)
	}
	return c.Do(ctx, req)
}

// GetJSON performs a GET request and decodes a 200 JSON body into target.
// Transient failures (network errors, 429 and 5xx) are retried when the
// client was built WithRetries.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<uint(attempt-1))
			c.logger.Debug().
				Str("source", c.source).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Err(lastErr).
				Msg("Retrying request")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		resp, err := c.Get(ctx, url)
		if err == nil {
			err = DecodeResponse(resp, c.source, target)
		}
		if err == nil {
			return nil
		}
		if errors.IsCanceled(err) || !retryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func retryable(err error) bool {
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 0 ||
		apiErr.StatusCode == http.StatusTooManyRequests ||
		apiErr.StatusCode >= http.StatusInternalServerError
}

// DecodeResponse decodes a JSON response into target and closes the body.
// Non-200 statuses become *errors.APIError, bad JSON becomes *errors.ParseError.
func DecodeResponse(resp *http.Response, source string, target any) error {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.IsCanceled(err) {
			return err
		}
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := errors.NewAPIError(source, resp.StatusCode, truncate(string(body), 256))
		if resp.Request != nil && resp.Request.URL != nil {
			apiErr.Endpoint = resp.Request.URL.String()
		}
		return apiErr
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", source+" response", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
