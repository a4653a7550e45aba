// Package filter parses record listing parameters from HTTP requests.
package filter

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/agentstation/shelf/internal/utils/ptr"
	"github.com/agentstation/shelf/pkg/query"
	"github.com/agentstation/shelf/pkg/records"
)

// RecordFilter holds the parameters of a record listing.
type RecordFilter struct {
	query.Params

	// Source keeps only records from one origin. Empty keeps both.
	Source records.Source
	// OnLoan keeps only records with the given loan state.
	OnLoan *bool

	Limit  int
	Offset int
}

// ParseRecordFilter extracts listing parameters from r. Unknown or
// malformed values fall back to their defaults.
func ParseRecordFilter(r *http.Request) RecordFilter {
	q := r.URL.Query()

	f := RecordFilter{
		Params: query.Params{
			Query:    q.Get("q"),
			Category: q.Get("category"),
		},
		Limit:  parseIntOrDefault(q.Get("limit"), 0),
		Offset: parseIntOrDefault(q.Get("offset"), 0),
	}

	switch src := records.Source(strings.ToLower(q.Get("source"))); src {
	case records.SourceLocal, records.SourceExternal:
		f.Source = src
	}

	if v := q.Get("on_loan"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.OnLoan = ptr.Bool(b)
		}
	}
	return f
}

// Apply narrows an already query-filtered listing by source, loan state and page.
func (f RecordFilter) Apply(recs []records.Record) []records.Record {
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if f.Source != "" && r.Source != f.Source {
			continue
		}
		if f.OnLoan != nil && r.OnLoan != *f.OnLoan {
			continue
		}
		out = append(out, r)
	}

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []records.Record{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}

// parseIntOrDefault parses a non-negative integer or returns def.
func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
