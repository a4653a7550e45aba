package server

import (
	"net/http"
	"strings"

	"github.com/agentstation/shelf/internal/server/handlers"
	"github.com/agentstation/shelf/internal/server/middleware"
	"github.com/agentstation/shelf/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(
		s.ctx,
		s.client,
		s.broker,
		s.wsHub,
		s.sseBroadcaster,
		s.upgrader,
		s.config.Debounce,
		s.logger,
	)

	s.registerRoutes(mux, h)
	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc(prefix+"/health", h.HandleHealth)
	mux.HandleFunc(prefix+"/ready", h.HandleReady)
	mux.HandleFunc(prefix+"/stats", getOnly(h.HandleStats))

	mux.HandleFunc(prefix+"/records", getOnly(h.HandleRecords))

	mux.HandleFunc(prefix+"/overrides", getOnly(h.HandleListOverrides))
	mux.HandleFunc(prefix+"/overrides/", func(w http.ResponseWriter, r *http.Request) {
		key := extractPathParam(r.URL.Path, prefix+"/overrides/")
		if key == "" {
			if r.Method == http.MethodGet {
				h.HandleListOverrides(w, r)
				return
			}
			response.BadRequest(w, "Override key required", "Use /overrides/{source}:{id}")
			return
		}

		switch r.Method {
		case http.MethodGet:
			h.HandleGetOverride(w, r, key)
		case http.MethodPut:
			h.HandleSetOverride(w, r, key)
		case http.MethodDelete:
			h.HandleClearOverride(w, r, key)
		default:
			response.MethodNotAllowed(w, r.Method)
		}
	})

	mux.HandleFunc(prefix+"/updates/ws", h.HandleWebSocket)
	mux.HandleFunc(prefix+"/updates/sse", h.HandleSSE)
}

// getOnly rejects every method but GET.
func getOnly(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		fn(w, r)
	}
}

// applyMiddleware wraps handler with the middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config
	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	}

	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
		} else {
			corsConfig.AllowAll = true
		}
		chain = append(chain, middleware.CORS(corsConfig))
	}

	if s.rateLimiter != nil {
		chain = append(chain, middleware.RateLimit(s.rateLimiter))
	}

	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.APIKey = cfg.AdminKey
		if cfg.AuthHeader != "" {
			authConfig.HeaderName = cfg.AuthHeader
		}
		chain = append(chain, middleware.Auth(authConfig, s.logger))
	}

	return middleware.Chain(chain...)(handler)
}

// extractPathParam returns the first path segment after prefix.
func extractPathParam(path, prefix string) string {
	trimmed := strings.TrimPrefix(path, prefix)
	first, _, _ := strings.Cut(trimmed, "/")
	return first
}
