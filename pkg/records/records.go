// Package records defines the normalized catalog Record and the raw, per-source
// variants it is built from.
//
// A Raw value is either a Local or an External record. Both carry the same
// normalized payload plus the fields only their source reports, which are kept
// for debugging and wide output. The effective loan flag is never part of a Raw
// value; it is computed by reconciliation against the override store.
package records

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/shelf/pkg/errors"
)

// Source tags where a record came from.
type Source string

// Known sources.
const (
	SourceLocal    Source = "local"
	SourceExternal Source = "external"
)

// OverridePrefix returns the prefix used for this source's override keys.
// External records are keyed under "api" to stay compatible with stored mappings.
func (s Source) OverridePrefix() string {
	if s == SourceExternal {
		return "api"
	}
	return "local"
}

// String implements fmt.Stringer.
func (s Source) String() string {
	return string(s)
}

// Format is a content-type hint for a record's document.
type Format string

// Known formats.
const (
	FormatNone Format = ""
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatEPUB Format = "epub"
)

// Record is a normalized catalog entry.
type Record struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Year        string `json:"year"`
	CoverURL    string `json:"cover_url,omitempty"`
	DocumentRef string `json:"document_ref"`
	Format      Format `json:"format,omitempty"`
	Source      Source `json:"source"`
	OnLoan      bool   `json:"on_loan"`
}

// Key returns the override key for the record.
func (r Record) Key() Key {
	return Key{Source: r.Source, ID: r.ID}
}

// ReaderLink returns the relative reader URL for the record. External records
// open their remote document by url and format; local records open their file.
// An empty string means there is nothing to open.
func (r Record) ReaderLink() string {
	if r.DocumentRef == "" {
		return ""
	}
	params := url.Values{}
	params.Set("title", r.Title)
	if r.Source == SourceExternal {
		params.Set("url", r.DocumentRef)
		params.Set("format", string(r.Format))
	} else {
		params.Set("file", r.DocumentRef)
	}
	return "read?" + params.Encode()
}

// Key identifies an override entry: a source prefix and a source-scoped id.
type Key struct {
	Source Source
	ID     ID
}

// String renders the key as "prefix:id", with an empty id part when the id is absent.
func (k Key) String() string {
	return k.Source.OverridePrefix() + ":" + k.ID.String()
}

// ParseKey parses "api:12" or "local:3". An empty id part is accepted and
// yields an absent id.
func ParseKey(s string) (Key, error) {
	prefix, rawID, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Key{}, errors.NewValidationError("key", s, "expected <source>:<id>")
	}

	var src Source
	switch strings.ToLower(prefix) {
	case "api", "external":
		src = SourceExternal
	case "local":
		src = SourceLocal
	default:
		return Key{}, errors.NewValidationError("key", s, "unknown source "+strconv.Quote(prefix))
	}

	if rawID == "" {
		return Key{Source: src}, nil
	}
	n, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Key{}, errors.NewValidationError("key", s, "id must be an integer")
	}
	return Key{Source: src, ID: NewID(n)}, nil
}
