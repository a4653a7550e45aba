package gutendex

import (
	"slices"
	"strings"

	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/records"
)

// Mime types consulted when mapping formats.
const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
	mimePDF  = "application/pdf"
	mimeHTML = "text/html"
	mimeEPUB = "application/epub+zip"
)

// Map converts a Gutendex book into an external raw record.
func Map(b Book) records.External {
	link, format := pickLink(b.Formats)
	return records.External{
		Record: records.Record{
			ID:          b.ID,
			Title:       orDefault(b.Title, constants.Untitled),
			Author:      author(b.Authors),
			Category:    category(b),
			Description: description(b),
			CoverURL:    cover(b.Formats),
			DocumentRef: link,
			Format:      format,
			Source:      records.SourceExternal,
		},
		Formats:     b.Formats,
		Subjects:    b.Subjects,
		Bookshelves: b.Bookshelves,
	}
}

func cover(formats map[string]string) string {
	if u := formats[mimeJPEG]; u != "" {
		return u
	}
	return formats[mimePNG]
}

// pickLink prefers pdf, then html, then epub.
func pickLink(formats map[string]string) (string, records.Format) {
	pdf := formats[mimePDF]
	if pdf == "" {
		pdf = byPrefix(formats, mimePDF)
	}
	if pdf != "" {
		return pdf, records.FormatPDF
	}
	if html := byPrefix(formats, mimeHTML); html != "" {
		return html, records.FormatHTML
	}
	if epub := formats[mimeEPUB]; epub != "" {
		return epub, records.FormatEPUB
	}
	return "", records.FormatNone
}

// byPrefix returns the first non-empty value whose key starts with prefix.
// Keys are visited in sorted order.
func byPrefix(formats map[string]string, prefix string) string {
	keys := make([]string, 0, len(formats))
	for k := range formats {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := formats[k]; v != "" {
			return v
		}
	}
	return ""
}

func author(people []Person) string {
	if len(people) > 0 && people[0].Name != "" {
		return people[0].Name
	}
	return constants.UnknownAuthor
}

func category(b Book) string {
	if s := first(b.Bookshelves); s != "" {
		return s
	}
	if s := first(b.Subjects); s != "" {
		return s
	}
	return constants.Uncategorized
}

func description(b Book) string {
	if s := first(b.Summaries); s != "" {
		return s
	}
	if len(b.Subjects) > 0 {
		n := min(len(b.Subjects), constants.DescriptionSubjectLimit)
		return strings.Join(b.Subjects[:n], ", ")
	}
	return constants.DescriptionUnavailable
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
