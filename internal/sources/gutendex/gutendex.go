// Package gutendex provides a client for the Gutendex public-domain catalog
// and the policy that maps its books onto shelf records.
package gutendex

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/shelf/internal/transport"
	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/records"
)

// DefaultBaseURL is the public Gutendex instance.
const DefaultBaseURL = "https://gutendex.com"

// Client fetches books from Gutendex.
type Client struct {
	baseURL   string
	transport *transport.Client
	logger    *zerolog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	rps        float64
	logger     *zerolog.Logger
	transports []transport.Option
}

// WithBaseURL overrides the Gutendex root.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit caps requests per second. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(o *clientOptions) {
		o.rps = rps
	}
}

// WithTransport passes options through to the underlying HTTP client.
func WithTransport(opts ...transport.Option) Option {
	return func(o *clientOptions) {
		o.transports = append(o.transports, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewClient creates a Gutendex client.
func NewClient(opts ...Option) *Client {
	o := &clientOptions{
		baseURL: DefaultBaseURL,
		rps:     constants.DefaultExternalRPS,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	tOpts := []transport.Option{
		transport.WithLogger(o.logger),
		transport.WithRateLimit(o.rps),
		transport.WithRetries(1, constants.RetryBackoff),
	}
	tOpts = append(tOpts, o.transports...)
	return &Client{
		baseURL:   o.baseURL,
		transport: transport.New(string(records.SourceExternal), tOpts...),
		logger:    o.logger,
	}
}

// Fetch returns at most ten mapped records for search. An empty search lists
// the catalog's first page. Errors are returned as-is; callers decide whether
// to degrade them.
func (c *Client) Fetch(ctx context.Context, search string) ([]records.Raw, error) {
	endpoint := c.endpoint(search)

	c.logger.Debug().
		Str("source", string(records.SourceExternal)).
		Str("url", endpoint).
		Msg("Fetching external records")

	var page booksResponse
	if err := c.transport.GetJSON(ctx, endpoint, &page); err != nil {
		return nil, errors.WrapSource(string(records.SourceExternal), err)
	}

	books := page.Results
	if len(books) > constants.ExternalResultLimit {
		books = books[:constants.ExternalResultLimit]
	}

	out := make([]records.Raw, 0, len(books))
	for _, b := range books {
		out = append(out, Map(b))
	}
	return out, nil
}

func (c *Client) endpoint(search string) string {
	params := url.Values{}
	params.Set("mime_type", "application/pdf")
	if search != "" {
		params.Set("search", search)
	}
	return c.baseURL + "/books/?" + params.Encode()
}
