package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentstation/shelf/internal/server/events"
	ws "github.com/agentstation/shelf/internal/server/websocket"
	"github.com/agentstation/shelf/pkg/session"
)

// HandleWebSocket handles GET {prefix}/updates/ws. Each connection gets its
// own session, driven by inbound messages and rendered back over the socket.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	id := uuid.NewString()
	client := ws.NewClient(id, h.wsHub, conn)

	sess, err := h.client.NewSession(client,
		session.WithID(id),
		session.WithDebounce(h.debounce),
		session.WithContext(h.ctx),
	)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to open session")
		_ = conn.Close()
		return
	}
	client.Attach(sess)
	h.wsHub.Register(client)

	h.broker.Publish(events.SessionOpened, map[string]any{
		"session_id":  id,
		"remote_addr": r.RemoteAddr,
	})

	go client.WritePump()
	go client.ReadPump()

	sess.Reload()
}

// HandleSSE handles GET {prefix}/updates/sse.
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.broker.Publish(events.ClientConnected, map[string]any{
		"transport":   "sse",
		"remote_addr": r.RemoteAddr,
	})
	h.sseBroadcaster.ServeHTTP(w, r)
}
