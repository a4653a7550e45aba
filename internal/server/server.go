// Package server provides the HTTP server of the shelf API: REST endpoints
// for records and overrides, a WebSocket session bridge and an SSE stream
// of override events.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/shelf"
	"github.com/agentstation/shelf/internal/server/events"
	"github.com/agentstation/shelf/internal/server/events/adapters"
	"github.com/agentstation/shelf/internal/server/middleware"
	"github.com/agentstation/shelf/internal/server/sse"
	ws "github.com/agentstation/shelf/internal/server/websocket"
	"github.com/agentstation/shelf/internal/utils/ptr"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/records"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	client         shelf.Client
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	rateLimiter    *middleware.RateLimiter
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	startTime      time.Time
}

// New creates a server over client.
func New(client shelf.Client, cfg Config, logger *zerolog.Logger) (*Server, error) {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = DefaultConfig().PathPrefix
	}
	if cfg.AuthEnabled && cfg.AdminKey == "" {
		return nil, errors.NewConfigError("server", "auth is enabled but no admin key is set", nil)
	}
	if err := middleware.ValidateOrigins(cfg.CORSOrigins); err != nil {
		return nil, errors.NewConfigError("server", "invalid CORS origin", err)
	}

	broker := events.NewBroker(logger)
	wsHub := ws.NewHub(logger)
	sseBroadcaster := sse.NewBroadcaster(logger)

	broker.Subscribe(adapters.NewWebSocketSubscriber(wsHub))
	broker.Subscribe(adapters.NewSSESubscriber(sseBroadcaster))

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		client:         client,
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger:    logger,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	if cfg.RateLimit > 0 {
		s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit, logger)
	}

	s.connectHooks()
	logger.Debug().
		Str("prefix", cfg.PathPrefix).
		Bool("auth", cfg.AuthEnabled).
		Int("rate_limit", cfg.RateLimit).
		Msg("Server instance created")
	return s, nil
}

// connectHooks publishes override changes to the broker. The WebSocket
// subscriber reloads open sessions on those events.
func (s *Server) connectHooks() {
	s.client.OnOverrideSet(func(key records.Key, onLoan bool) {
		s.broker.Publish(events.OverrideSet, events.OverridePayload{Key: key.String(), OnLoan: ptr.Bool(onLoan)})
		s.logger.Debug().Str("key", key.String()).Bool("on_loan", onLoan).Msg("Override set event published")
	})
	s.client.OnOverrideCleared(func(key records.Key) {
		s.broker.Publish(events.OverrideCleared, events.OverridePayload{Key: key.String()})
		s.logger.Debug().Str("key", key.String()).Msg("Override cleared event published")
	})
}

// Start starts the background services.
func (s *Server) Start() {
	go s.broker.Run(s.ctx)
	go s.wsHub.Run(s.ctx)
	go s.sseBroadcaster.Run(s.ctx)
	if s.rateLimiter != nil {
		go s.rateLimiter.Run(s.ctx)
	}
	s.logger.Debug().Msg("Background services started")
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// HTTPServer returns an http.Server for the configured address and timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Shutdown stops background services. Open WebSocket connections are
// closed, which closes their sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()

	select {
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.logger.Info().Msg("Background services shut down")
		return nil
	}
}

// Broker returns the event broker.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *ws.Hub {
	return s.wsHub
}

// SSEBroadcaster returns the SSE broadcaster.
func (s *Server) SSEBroadcaster() *sse.Broadcaster {
	return s.sseBroadcaster
}

// StartTime returns the server start time.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
