// Package handlers provides the HTTP handlers of the shelf API.
package handlers

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/shelf"
	"github.com/agentstation/shelf/internal/server/events"
	"github.com/agentstation/shelf/internal/server/sse"
	ws "github.com/agentstation/shelf/internal/server/websocket"
)

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	ctx            context.Context
	client         shelf.Client
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	debounce       time.Duration
	startTime      time.Time
	logger         *zerolog.Logger
}

// New creates a new Handlers instance. ctx bounds the lifetime of the
// sessions opened for WebSocket connections.
func New(
	ctx context.Context,
	client shelf.Client,
	broker *events.Broker,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	upgrader websocket.Upgrader,
	debounce time.Duration,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		ctx:            ctx,
		client:         client,
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader:       upgrader,
		debounce:       debounce,
		startTime:      time.Now(),
		logger:         logger,
	}
}
