// Package appcontext provides the application context interface shared by
// the shelf commands. Commands accept it instead of the concrete App so they
// can be tested with a Mock.
package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/shelf"
	"github.com/agentstation/shelf/internal/server"
)

// Interface is what a command may ask of the application.
type Interface interface {
	// Client returns the shared shelf client, creating it on first use.
	Client() (shelf.Client, error)

	// ServerConfig returns the server configuration derived from the loaded
	// config. Flags on the serve command are applied on top of it.
	ServerConfig() server.Config

	// Logger returns the configured logger.
	Logger() *zerolog.Logger

	// OutputFormat returns the requested output format, empty for auto-detect.
	OutputFormat() string

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
