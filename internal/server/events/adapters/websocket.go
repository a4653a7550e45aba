package adapters

import (
	"github.com/agentstation/shelf/internal/server/events"
	ws "github.com/agentstation/shelf/internal/server/websocket"
)

// WebSocketSubscriber forwards broker events to every WebSocket client.
// Override events also trigger a reload of every attached session so open
// views pick up the new loan state.
type WebSocketSubscriber struct {
	hub *ws.Hub
}

// NewWebSocketSubscriber creates a new WebSocket subscriber.
func NewWebSocketSubscriber(hub *ws.Hub) *WebSocketSubscriber {
	return &WebSocketSubscriber{hub: hub}
}

// Send implements events.Subscriber.
func (w *WebSocketSubscriber) Send(event events.Event) error {
	w.hub.Broadcast(ws.Message{
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Data:      event.Data,
	})
	if event.Type == events.OverrideSet || event.Type == events.OverrideCleared {
		w.hub.ReloadAll()
	}
	return nil
}

// Close is a no-op; the hub has its own lifecycle.
func (w *WebSocketSubscriber) Close() error {
	return nil
}

var (
	_ events.Subscriber = (*WebSocketSubscriber)(nil)
	_ events.Subscriber = (*SSESubscriber)(nil)
)
