// Package constants provides shared constants used throughout the shelf codebase.
// This includes timeouts, limits, file permissions and the fallbacks used when
// normalizing records from the external catalog.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the transport timeout for requests to either inventory source
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultDebounce is the quiet period applied to free-text query changes
	DefaultDebounce = 300 * time.Millisecond

	// ShutdownTimeout bounds graceful shutdown of the CLI and server
	ShutdownTimeout = 5 * time.Second

	// RetryBackoff is the base backoff duration for external catalog retries
	RetryBackoff = 1 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// ExternalResultLimit caps the number of records taken from one external page
	ExternalResultLimit = 10

	// DescriptionSubjectLimit is how many subjects are joined into a fallback description
	DescriptionSubjectLimit = 3

	// DefaultExternalRPS is the default request rate towards the external catalog
	DefaultExternalRPS = 2
)

// Storage constants
const (
	// OverridesKey is the durable key holding the JSON encoded override mapping
	OverridesKey = "shelf.overrides"
)

// Fallback values applied when an external record lacks a field
const (
	UnknownAuthor          = "unknown author"
	Untitled               = "untitled"
	Uncategorized          = "uncategorized"
	DescriptionUnavailable = "no description available"
)
