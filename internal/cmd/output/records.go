package output

import (
	"io"
	"strings"

	"github.com/agentstation/shelf/internal/cmd/emoji"
	"github.com/agentstation/shelf/pkg/overrides"
	"github.com/agentstation/shelf/pkg/records"
)

const descriptionWidth = 60

// RecordsToTableData converts records to rows. Wide adds the description,
// cover and reader link columns.
func RecordsToTableData(recs []records.Record, wide bool) Data {
	headers := []string{"Key", "Title", "Author", "Year", "Category", "Loan"}
	align := []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignCenter}
	if wide {
		headers = append(headers, "Description", "Cover", "Link")
		align = append(align, AlignLeft, AlignLeft, AlignLeft)
	}

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		row := []string{
			r.Key().String(),
			r.Title,
			dash(r.Author),
			dash(r.Year),
			dash(r.Category),
			loanMark(r.OnLoan),
		}
		if wide {
			row = append(row, dash(truncate(r.Description, descriptionWidth)), dash(r.CoverURL), dash(r.ReaderLink()))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// OverridesToTableData converts override entries to rows.
func OverridesToTableData(entries []overrides.Entry) Data {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Key, loanMark(e.OnLoan)})
	}
	return Data{
		Headers:         []string{"Key", "On Loan"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignCenter},
	}
}

// FormatRecords writes recs in format. Table formats get rows; the others
// get the records as they are.
func FormatRecords(w io.Writer, recs []records.Record, format Format) error {
	if recs == nil {
		recs = []records.Record{}
	}
	var data any = recs
	if format.IsTable() {
		data = RecordsToTableData(recs, format == FormatWide)
	}
	return NewFormatter(format).Format(w, data)
}

// FormatOverrides writes override entries in format.
func FormatOverrides(w io.Writer, entries []overrides.Entry, format Format) error {
	if entries == nil {
		entries = []overrides.Entry{}
	}
	var data any = entries
	if format.IsTable() {
		data = OverridesToTableData(entries)
	}
	return NewFormatter(format).Format(w, data)
}

func loanMark(onLoan bool) string {
	if onLoan {
		return emoji.OnLoan
	}
	return emoji.Available
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
