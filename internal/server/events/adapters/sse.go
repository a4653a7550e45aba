// Package adapters connects the event broker to the SSE and WebSocket transports.
package adapters

import (
	"github.com/agentstation/shelf/internal/server/events"
	"github.com/agentstation/shelf/internal/server/sse"
)

// SSESubscriber forwards broker events to the SSE broadcaster.
type SSESubscriber struct {
	broadcaster *sse.Broadcaster
}

// NewSSESubscriber creates a new SSE subscriber.
func NewSSESubscriber(broadcaster *sse.Broadcaster) *SSESubscriber {
	return &SSESubscriber{broadcaster: broadcaster}
}

// Send implements events.Subscriber.
func (s *SSESubscriber) Send(event events.Event) error {
	s.broadcaster.Broadcast(sse.Event{
		Event: string(event.Type),
		ID:    event.ID,
		Data:  event.Data,
	})
	return nil
}

// Close is a no-op; the broadcaster has its own lifecycle.
func (s *SSESubscriber) Close() error {
	return nil
}
