package records

// Raw is a record as reported by one source, before overrides are applied.
// The set of implementations is closed: Local and External.
type Raw interface {
	// Base returns the normalized payload. OnLoan is always false here.
	Base() Record
	// ReportedLoan returns the loan flag exactly as the source encoded it.
	ReportedLoan() any

	isRaw()
}

// Local is a record from the local backend.
type Local struct {
	Record
	// Loan is the backend's est_emprunte value as decoded from JSON.
	Loan any
	// File is the backend file name, also used as DocumentRef.
	File string
}

// Base implements Raw.
func (l Local) Base() Record {
	r := l.Record
	r.Source = SourceLocal
	r.OnLoan = false
	return r
}

// ReportedLoan implements Raw.
func (l Local) ReportedLoan() any { return l.Loan }

func (Local) isRaw() {}

// External is a record mapped from the external catalog.
type External struct {
	Record
	// Formats is the provider's mime type to URL map, kept for debugging.
	Formats map[string]string
	// Subjects and Bookshelves are the provider's tags before fallback selection.
	Subjects    []string
	Bookshelves []string
}

// Base implements Raw.
func (e External) Base() Record {
	r := e.Record
	r.Source = SourceExternal
	r.OnLoan = false
	return r
}

// ReportedLoan implements Raw. The external catalog never reports loans.
func (External) ReportedLoan() any { return false }

func (External) isRaw() {}

var (
	_ Raw = Local{}
	_ Raw = External{}
)
