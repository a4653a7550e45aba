// Package app wires configuration, logging and the shelf client together for
// the CLI, and owns their lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/shelf"
	"github.com/agentstation/shelf/internal/appcontext"
	"github.com/agentstation/shelf/internal/server"
	"github.com/agentstation/shelf/pkg/errors"
)

var _ appcontext.Interface = (*App)(nil)

// App holds the CLI's dependencies.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// client is created lazily on first use.
	mu     sync.Mutex
	client shelf.Client
}

// New creates an App with configuration loaded from the default locations.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// OutputFormat returns the --format value, empty for auto-detect.
func (a *App) OutputFormat() string { return a.config.Format }

// Client returns the shelf client, creating it on first call.
func (a *App) Client() (shelf.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	client, err := shelf.New(a.clientOptions()...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", "", err)
	}
	a.client = client
	return client, nil
}

// ServerConfig returns server defaults adjusted by the loaded configuration.
func (a *App) ServerConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Debounce = a.config.Debounce
	if a.config.AdminKey != "" {
		cfg.AuthEnabled = true
		cfg.AdminKey = a.config.AdminKey
	}
	return cfg
}

// Shutdown closes the client if one was created.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return errors.WrapResource("close", "client", "", err)
	}
	return nil
}

func (a *App) clientOptions() []shelf.Option {
	opts := []shelf.Option{
		shelf.WithStoreURI(a.config.Store),
		shelf.WithLocalURL(a.config.LocalURL),
		shelf.WithGutendexURL(a.config.GutendexURL),
		shelf.WithGutendexRPS(a.config.GutendexRPS),
		shelf.WithHTTPTimeout(a.config.HTTPTimeout),
		shelf.WithLogger(a.logger),
	}
	if a.config.LocalToken != "" {
		opts = append(opts, shelf.WithLocalToken(a.config.LocalToken))
	}
	if a.config.OverridesKey != "" {
		opts = append(opts, shelf.WithOverridesKey(a.config.OverridesKey))
	}
	return opts
}

// Option configures an App.
type Option func(*App) error

// WithConfig replaces the loaded configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger replaces the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithClient injects a client, mainly for tests. Shutdown will close it.
func WithClient(client shelf.Client) Option {
	return func(a *App) error {
		a.client = client
		return nil
	}
}
