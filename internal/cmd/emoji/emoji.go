// Package emoji provides symbol constants for CLI output.
package emoji

// Status symbols.
const (
	// Success marks a completed operation.
	Success = "✓"

	// Error marks a failed operation.
	Error = "✗"

	// Warning marks a non-fatal problem, such as a degraded source.
	Warning = "!"

	// Info marks informational lines.
	Info = "i"

	// Spinner marks a result that is still being completed.
	Spinner = "..."
)

// Loan symbols.
const (
	// OnLoan marks a record that is currently lent out.
	OnLoan = "●"

	// Available marks a record on the shelf.
	Available = "○"
)
