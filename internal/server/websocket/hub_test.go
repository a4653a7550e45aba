package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/records"
	"github.com/agentstation/shelf/pkg/session"
)

type fakeController struct {
	mu     sync.Mutex
	calls  []string
	closed bool
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) OnQueryChange(text string)   { f.record("query:" + text) }
func (f *fakeController) OnSubmit(text string)        { f.record("submit:" + text) }
func (f *fakeController) OnCategoryToggle(cat string) { f.record("category:" + cat) }
func (f *fakeController) OnReset()                    { f.record("reset") }
func (f *fakeController) Reload()                     { f.record("reload") }
func (f *fakeController) Categories() []string        { return []string{"Roman"} }

func (f *fakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeController) snapshot() ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), f.closed
}

type harness struct {
	hub     *Hub
	ctrl    *fakeController
	clients chan *Client
	conn    *websocket.Conn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		hub:     NewHub(logging.NewNopLogger()),
		ctrl:    &fakeController{},
		clients: make(chan *Client, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient("client-1", h.hub, conn)
		c.Attach(h.ctrl)
		h.hub.Register(c)
		h.clients <- c
		go c.WritePump()
		go c.ReadPump()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	h.conn = conn

	require.Eventually(t, func() bool { return h.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return h
}

func (h *harness) client(t *testing.T) *Client {
	t.Helper()
	select {
	case c := <-h.clients:
		h.clients <- c
		return c
	case <-time.After(time.Second):
		t.Fatal("no client")
		return nil
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestClientDispatchesInbound(t *testing.T) {
	h := newHarness(t)

	for _, in := range []Inbound{
		{Type: TypeQuery, Value: "mis"},
		{Type: TypeSubmit, Value: "don"},
		{Type: TypeCategory, Value: "Roman"},
		{Type: TypeReset},
		{Type: TypeReload},
	} {
		require.NoError(t, h.conn.WriteJSON(in))
	}

	want := []string{"query:mis", "submit:don", "category:Roman", "reset", "reload"}
	require.Eventually(t, func() bool {
		calls, _ := h.ctrl.snapshot()
		return len(calls) == len(want)
	}, time.Second, 5*time.Millisecond)

	calls, _ := h.ctrl.snapshot()
	assert.Equal(t, want, calls)
}

func TestClientRejectsUnknownAndMalformed(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.conn.WriteJSON(Inbound{Type: "dance"}))
	m := readMessage(t, h.conn)
	assert.Equal(t, TypeError, m["type"])
	assert.Contains(t, m["data"].(map[string]any)["message"], "dance")

	require.NoError(t, h.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	m = readMessage(t, h.conn)
	assert.Equal(t, TypeError, m["type"])
	assert.Equal(t, "malformed message", m["data"].(map[string]any)["message"])
}

func TestClientRender(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	c.Render([]records.Record{{
		ID:          records.NewID(7),
		Title:       "Les Misérables",
		Category:    "Roman",
		DocumentRef: "les-miserables.pdf",
		Source:      records.SourceLocal,
	}}, "mis", "", session.Meta{Pending: true, Generation: 3})

	m := readMessage(t, h.conn)
	assert.Equal(t, TypeRender, m["type"])
	data := m["data"].(map[string]any)
	assert.Equal(t, "mis", data["query"])
	assert.Equal(t, true, data["pending"])
	assert.EqualValues(t, 3, data["generation"])
	assert.Equal(t, []any{"Roman"}, data["categories"])

	recs := data["records"].([]any)
	require.Len(t, recs, 1)
	rec := recs[0].(map[string]any)
	assert.Equal(t, "Les Misérables", rec["title"])
	assert.NotEmpty(t, rec["link"])
}

func TestClientRenderError(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	c.RenderError(errors.WrapSource("local", errors.New("connection refused")))

	m := readMessage(t, h.conn)
	assert.Equal(t, TypeError, m["type"])
	data := m["data"].(map[string]any)
	assert.Equal(t, "local", data["source"])
	assert.Contains(t, data["message"], "connection refused")
}

func TestHubBroadcastAndReloadAll(t *testing.T) {
	h := newHarness(t)

	h.hub.Broadcast(Message{Type: "override.set", Data: map[string]string{"key": "local:7"}})
	m := readMessage(t, h.conn)
	assert.Equal(t, "override.set", m["type"])

	h.hub.ReloadAll()
	calls, _ := h.ctrl.snapshot()
	assert.Equal(t, []string{"reload"}, calls)
}

func TestDisconnectClosesSession(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.conn.Close())

	require.Eventually(t, func() bool {
		_, closed := h.ctrl.snapshot()
		return closed && h.hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	c := h.client(t)
	assert.False(t, c.enqueue(Message{Type: TypeRender}), "closed clients drop messages")
}

func TestHubShutdownClosesConnections(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.done

	// Register after shutdown must not block.
	done := make(chan struct{})
	go func() {
		hub.Register(&Client{id: "late", hub: hub, done: make(chan struct{})})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Register blocked after shutdown")
	}
	assert.Zero(t, hub.ClientCount())
}
