// Package query implements the search and category filter applied to the
// merged record set.
package query

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/shelf/pkg/records"
)

// Params is a query and category pair as entered by the user.
type Params struct {
	Query    string `json:"q"`
	Category string `json:"category"`
}

// Apply filters recs with p.
func (p Params) Apply(recs []records.Record) []records.Record {
	return Filter(recs, p.Query, p.Category)
}

// normalize trims and lower-cases s. Casers are not safe for concurrent use,
// so each call gets its own.
func normalize(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// MatchesQuery reports whether q occurs in r's title, author, category or
// description, ignoring case. An empty or blank q matches everything.
func MatchesQuery(r records.Record, q string) bool {
	needle := normalize(q)
	if needle == "" {
		return true
	}
	return matchesNormalized(r, needle)
}

func matchesNormalized(r records.Record, needle string) bool {
	for _, field := range []string{r.Title, r.Author, r.Category, r.Description} {
		if strings.Contains(normalize(field), needle) {
			return true
		}
	}
	return false
}

// MatchesCategory reports whether c occurs in r's category, ignoring case.
// An empty or blank c matches everything.
func MatchesCategory(r records.Record, c string) bool {
	needle := normalize(c)
	if needle == "" {
		return true
	}
	return strings.Contains(normalize(r.Category), needle)
}

// Filter returns the records matching both q and c, in their original order.
// The result is never nil.
func Filter(recs []records.Record, q, c string) []records.Record {
	qn, cn := normalize(q), normalize(c)
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if qn != "" && !matchesNormalized(r, qn) {
			continue
		}
		if cn != "" && !strings.Contains(normalize(r.Category), cn) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Merge concatenates local and external records, local first.
func Merge(local, external []records.Record) []records.Record {
	out := make([]records.Record, 0, len(local)+len(external))
	out = append(out, local...)
	return append(out, external...)
}

// Categories returns the distinct non-blank categories of recs, trimmed, in
// first-seen order.
func Categories(recs []records.Record) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range recs {
		c := strings.TrimSpace(r.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
