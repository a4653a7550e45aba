package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/shelf"
	"github.com/agentstation/shelf/internal/server"
	"github.com/agentstation/shelf/pkg/logging"
)

var _ Interface = (*Mock)(nil)

// Mock is a configurable Interface for command tests. Nil fields fall back
// to zero values, except Logger which falls back to a no-op logger.
type Mock struct {
	ClientValue shelf.Client
	ClientErr   error
	ServerCfg   *server.Config
	Log         *zerolog.Logger
	Format      string
	VersionStr  string
}

// Client returns ClientValue and ClientErr.
func (m *Mock) Client() (shelf.Client, error) {
	return m.ClientValue, m.ClientErr
}

// ServerConfig returns ServerCfg or server.DefaultConfig.
func (m *Mock) ServerConfig() server.Config {
	if m.ServerCfg != nil {
		return *m.ServerCfg
	}
	return server.DefaultConfig()
}

// Logger returns Log or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return logging.NewNopLogger()
}

// OutputFormat returns Format.
func (m *Mock) OutputFormat() string { return m.Format }

// Version returns VersionStr.
func (m *Mock) Version() string { return m.VersionStr }

// Commit returns "test".
func (m *Mock) Commit() string { return "test" }

// Date returns "test".
func (m *Mock) Date() string { return "test" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }
