// Package local provides a client for the local catalog backend.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/shelf/internal/transport"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/records"
)

// DefaultBaseURL is where the backend listens when nothing else is configured.
const DefaultBaseURL = "http://localhost:8000"

const listPath = "/api/livres"

// Response structures for the backend listing.
type bookResponse struct {
	ID          records.ID `json:"id"`
	Title       string     `json:"titre"`
	Author      string     `json:"auteur"`
	Year        yearText   `json:"annee"`
	Category    string     `json:"categorie"`
	Description string     `json:"description"`
	File        string     `json:"fichier"`
	Cover       string     `json:"couverture"`
	OnLoan      any        `json:"est_emprunte"`
}

// yearText accepts a number or a string. Zero means unknown.
type yearText string

func (y *yearText) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*y = ""
	case json.Number:
		if n, err := t.Int64(); err == nil && n == 0 {
			*y = ""
		} else {
			*y = yearText(t.String())
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "0" {
			s = ""
		}
		*y = yearText(s)
	default:
		return errors.NewValidationError("annee", v, "expected number or string")
	}
	return nil
}

// Client fetches records from the local backend.
type Client struct {
	baseURL   string
	transport *transport.Client
	logger    *zerolog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	logger     *zerolog.Logger
	transports []transport.Option
}

// WithBaseURL sets the backend root, e.g. http://localhost:8000.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/")
		}
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

// NewClient creates a client for the local backend.
func NewClient(opts ...Option) *Client {
	o := &clientOptions{
		baseURL: DefaultBaseURL,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	tOpts := append([]transport.Option{transport.WithLogger(o.logger)}, o.transports...)
	return &Client{
		baseURL:   o.baseURL,
		transport: transport.New(string(records.SourceLocal), tOpts...),
		logger:    o.logger,
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch lists the backend's records matching query and category. Empty
// arguments are not sent. A canceled ctx yields an error for which
// errors.IsCanceled reports true; other failures are *errors.SourceError.
func (c *Client) Fetch(ctx context.Context, query, category string) ([]records.Raw, error) {
	endpoint := c.endpoint(query, category)

	c.logger.Debug().
		Str("source", string(records.SourceLocal)).
		Str("url", endpoint).
		Msg("Fetching local records")

	var books []bookResponse
	if err := c.transport.GetJSON(ctx, endpoint, &books); err != nil {
		return nil, errors.WrapSource(string(records.SourceLocal), err)
	}

	out := make([]records.Raw, 0, len(books))
	for _, b := range books {
		out = append(out, convert(b))
	}
	return out, nil
}

func (c *Client) endpoint(query, category string) string {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if category != "" {
		params.Set("categorie", category)
	}
	u := c.baseURL + listPath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func convert(b bookResponse) records.Local {
	return records.Local{
		Record: records.Record{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			Category:    b.Category,
			Description: b.Description,
			Year:        string(b.Year),
			CoverURL:    strings.TrimSpace(b.Cover),
			DocumentRef: b.File,
			Source:      records.SourceLocal,
		},
		Loan: b.OnLoan,
		File: b.File,
	}
}
