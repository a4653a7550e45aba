package server

import (
	"time"

	"github.com/agentstation/shelf/pkg/constants"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// API settings
	PathPrefix string

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Authentication for override mutations
	AuthEnabled bool
	AuthHeader  string
	AdminKey    string

	// RateLimit is requests per minute per client address (0 to disable)
	RateLimit int

	// Debounce is the query quiet period of WebSocket sessions
	Debounce time.Duration

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         8080,
		PathPrefix:   "/api/v1",
		CORSEnabled:  true,
		AuthHeader:   "X-API-Key",
		RateLimit:    300,
		Debounce:     constants.DefaultDebounce,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
