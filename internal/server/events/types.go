// Package events fans shelf change notifications out to every connected
// transport. Override hooks publish into a Broker and the SSE and
// WebSocket adapters deliver to their clients.
package events

import "time"

// EventType names a kind of shelf event.
type EventType string

// Event types.
const (
	// Override events, from the facade hooks.
	OverrideSet     EventType = "override.set"
	OverrideCleared EventType = "override.cleared"

	// Transport events.
	ClientConnected EventType = "client.connected"
	SessionOpened   EventType = "session.opened"
)

// Event is a single published notification.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// OverridePayload is the data carried by override events.
type OverridePayload struct {
	Key    string `json:"key"`
	OnLoan *bool  `json:"on_loan,omitempty"`
}
