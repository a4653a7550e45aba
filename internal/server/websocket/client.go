package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/records"
	"github.com/agentstation/shelf/pkg/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 64
)

// Inbound message types.
const (
	TypeQuery    = "query"
	TypeSubmit   = "submit"
	TypeCategory = "category"
	TypeReset    = "reset"
	TypeReload   = "reload"
)

// Outbound message types.
const (
	TypeRender = "render"
	TypeError  = "error"
)

// Controller is the part of a session a connection drives.
type Controller interface {
	OnQueryChange(text string)
	OnSubmit(text string)
	OnCategoryToggle(cat string)
	OnReset()
	Reload()
	Categories() []string
	Close() error
}

var (
	_ Controller       = (*session.Session)(nil)
	_ session.Renderer = (*Client)(nil)
)

// Message is an outbound frame.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Inbound is a frame sent by the browser.
type Inbound struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// RecordView is a record plus its reader link.
type RecordView struct {
	records.Record
	Link string `json:"link,omitempty"`
}

// RenderPayload is the data of a render message.
type RenderPayload struct {
	Records    []RecordView `json:"records"`
	Query      string       `json:"query"`
	Category   string       `json:"category"`
	Pending    bool         `json:"pending"`
	Generation uint64       `json:"generation"`
	Categories []string     `json:"categories"`
}

// ErrorPayload is the data of an error message.
type ErrorPayload struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// Client is one WebSocket connection. It renders its session's results.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan Message
	done chan struct{}

	mu      sync.RWMutex
	session Controller
}

// NewClient creates a new WebSocket client.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}
}

// ID returns the client id, which is also its session id.
func (c *Client) ID() string { return c.id }

// Attach binds the session this connection drives.
func (c *Client) Attach(s Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) controller() Controller {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Render implements session.Renderer.
func (c *Client) Render(recs []records.Record, query, category string, meta session.Meta) {
	views := make([]RecordView, len(recs))
	for i, r := range recs {
		views[i] = RecordView{Record: r, Link: r.ReaderLink()}
	}
	var cats []string
	if s := c.controller(); s != nil {
		cats = s.Categories()
	}
	if cats == nil {
		cats = []string{}
	}
	c.enqueue(Message{
		Type:      TypeRender,
		Timestamp: time.Now(),
		Data: RenderPayload{
			Records:    views,
			Query:      query,
			Category:   category,
			Pending:    meta.Pending,
			Generation: meta.Generation,
			Categories: cats,
		},
	})
}

// RenderError implements session.Renderer.
func (c *Client) RenderError(err error) {
	payload := ErrorPayload{Message: err.Error()}
	var srcErr *errors.SourceError
	if errors.As(err, &srcErr) {
		payload.Source = srcErr.Source
	}
	c.enqueue(Message{Type: TypeError, Timestamp: time.Now(), Data: payload})
}

// enqueue queues a message without blocking. Messages for a closed or
// saturated client are dropped.
func (c *Client) enqueue(m Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- m:
		return true
	default:
		c.hub.logger.Warn().Str("client_id", c.id).Str("type", m.Type).Msg("WebSocket client buffer full, message dropped")
		return false
	}
}

func (c *Client) dispatch(in Inbound) {
	s := c.controller()
	if s == nil {
		return
	}
	switch in.Type {
	case TypeQuery:
		s.OnQueryChange(in.Value)
	case TypeSubmit:
		s.OnSubmit(in.Value)
	case TypeCategory:
		s.OnCategoryToggle(in.Value)
	case TypeReset:
		s.OnReset()
	case TypeReload:
		s.Reload()
	default:
		c.enqueue(Message{
			Type:      TypeError,
			Timestamp: time.Now(),
			Data:      ErrorPayload{Message: "unknown message type: " + in.Type},
		})
	}
}

// ReadPump reads inbound frames and drives the session. When the peer goes
// away it closes the session and unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		if s := c.controller(); s != nil {
			_ = s.Close()
		}
		c.hub.remove(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.enqueue(Message{
				Type:      TypeError,
				Timestamp: time.Now(),
				Data:      ErrorPayload{Message: "malformed message"},
			})
			continue
		}
		c.dispatch(in)
	}
}

// WritePump writes queued messages and keepalive pings until the read side ends.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
