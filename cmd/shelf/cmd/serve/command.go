// Package serve provides the HTTP server command.
package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/shelf/internal/appcontext"
	"github.com/agentstation/shelf/internal/cmd/emoji"
	"github.com/agentstation/shelf/internal/server"
)

// shutdownTimeout bounds connection draining after a shutdown signal.
const shutdownTimeout = 30 * time.Second

// NewCommand creates the serve command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	defaults := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		GroupID: "core",
		Short:   "Serve the catalog over HTTP, WebSocket and SSE",
		Long: `Start the shelf API server.

Endpoints (under --prefix, default /api/v1):
  GET    /records?q=&category=     merged, reconciled and filtered records
  GET    /overrides                 list loan overrides
  GET    /overrides/{key}           read one override
  PUT    /overrides/{key}           set an override, body {"on_loan": bool}
  DELETE /overrides/{key}           clear an override
  GET    /updates/ws                interactive session over WebSocket
  GET    /updates/sse               override events as Server-Sent Events
  GET    /health, /ready, /stats    liveness and runtime information

Override changes reload every connected WebSocket session.`,
		Example: `  # Start on the default port 8080
  shelf serve

  # Require an admin key for override changes
  shelf serve --admin-key s3cret

  # Restrict CORS and rate limit per client IP
  shelf serve --cors-origins https://example.com --rate-limit 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd, app)
		},
	}

	cmd.Flags().Int("port", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")
	cmd.Flags().String("prefix", defaults.PathPrefix, "API path prefix")

	cmd.Flags().Bool("cors", defaults.CORSEnabled, "Enable CORS")
	cmd.Flags().StringSlice("cors-origins", nil, "Allowed CORS origins (comma-separated, default all)")

	cmd.Flags().Bool("auth", false, "Require an API key for override changes")
	cmd.Flags().String("auth-header", defaults.AuthHeader, "Authentication header name")
	cmd.Flags().String("admin-key", "", "API key for override changes (implies --auth)")

	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per IP (0 to disable)")
	cmd.Flags().Duration("debounce", defaults.Debounce, "Debounce delay for WebSocket query input")

	cmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "HTTP write timeout")
	cmd.Flags().Duration("idle-timeout", defaults.IdleTimeout, "HTTP idle timeout")

	return cmd
}

func runServer(cmd *cobra.Command, app appcontext.Interface) error {
	logger := app.Logger()

	cfg, err := parseConfig(cmd, app.ServerConfig())
	if err != nil {
		return err
	}

	client, err := app.Client()
	if err != nil {
		return err
	}

	srv, err := server.New(client, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Start()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	logger.Info().
		Str("addr", addr).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.AuthEnabled).
		Int("rate_limit", cfg.RateLimit).
		Dur("debounce", cfg.Debounce).
		Msg("Starting API server")

	return startWithGracefulShutdown(cmd, srv.HTTPServer(addr), srv, logger)
}

// parseConfig applies flags that were set explicitly, then HTTP_PORT and
// HTTP_HOST, on top of base.
func parseConfig(cmd *cobra.Command, base server.Config) (server.Config, error) {
	cfg := base
	flags := cmd.Flags()

	if flags.Changed("port") {
		cfg.Port = mustGetInt(cmd, "port")
	}
	if flags.Changed("host") {
		cfg.Host = mustGetString(cmd, "host")
	}
	if flags.Changed("prefix") {
		cfg.PathPrefix = mustGetString(cmd, "prefix")
	}
	if flags.Changed("cors") {
		cfg.CORSEnabled = mustGetBool(cmd, "cors")
	}
	if flags.Changed("cors-origins") {
		cfg.CORSEnabled = true
		cfg.CORSOrigins = mustGetStringSlice(cmd, "cors-origins")
	}
	if flags.Changed("auth") {
		cfg.AuthEnabled = mustGetBool(cmd, "auth")
	}
	if flags.Changed("auth-header") {
		cfg.AuthHeader = mustGetString(cmd, "auth-header")
	}
	if flags.Changed("admin-key") {
		cfg.AdminKey = mustGetString(cmd, "admin-key")
		cfg.AuthEnabled = cfg.AdminKey != ""
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit = mustGetInt(cmd, "rate-limit")
	}
	if flags.Changed("debounce") {
		cfg.Debounce = mustGetDuration(cmd, "debounce")
	}
	if flags.Changed("read-timeout") {
		cfg.ReadTimeout = mustGetDuration(cmd, "read-timeout")
	}
	if flags.Changed("write-timeout") {
		cfg.WriteTimeout = mustGetDuration(cmd, "write-timeout")
	}
	if flags.Changed("idle-timeout") {
		cfg.IdleTimeout = mustGetDuration(cmd, "idle-timeout")
	}

	if envPort := os.Getenv("HTTP_PORT"); envPort != "" {
		p, err := parsePort(envPort)
		if err != nil {
			return cfg, err
		}
		cfg.Port = p
	}
	if envHost := os.Getenv("HTTP_HOST"); envHost != "" {
		cfg.Host = envHost
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("port out of range: %d", cfg.Port)
	}
	if cfg.RateLimit < 0 {
		return cfg, fmt.Errorf("rate limit must not be negative: %d", cfg.RateLimit)
	}
	return cfg, nil
}

func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port out of range: %d", port)
	}
	return port, nil
}

// startWithGracefulShutdown serves until the command context is cancelled,
// then drains connections and stops the background services.
func startWithGracefulShutdown(cmd *cobra.Command, httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		fmt.Fprintf(out, "%s API server listening on %s\n", emoji.Success, httpServer.Addr)
		fmt.Fprintln(out, "   Press Ctrl+C to stop")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
		fmt.Fprintf(out, "\n%s Shutting down API server...\n", emoji.Info)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}

		logger.Info().Msg("Server stopped gracefully")
		fmt.Fprintf(out, "%s API server stopped gracefully\n", emoji.Success)
		return nil
	}
}

func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}
