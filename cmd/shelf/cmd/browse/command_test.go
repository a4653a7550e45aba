package browse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/shelf"
	"github.com/agentstation/shelf/internal/appcontext"
	"github.com/agentstation/shelf/internal/cmd/output"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/records"
	"github.com/agentstation/shelf/pkg/session"
)

type fakeController struct {
	mu     sync.Mutex
	events []string
	cats   []string
}

func (f *fakeController) record(e string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeController) OnQueryChange(text string)   { f.record("query:" + text) }
func (f *fakeController) OnSubmit(text string)        { f.record("submit:" + text) }
func (f *fakeController) OnCategoryToggle(cat string) { f.record("category:" + cat) }
func (f *fakeController) OnReset()                    { f.record("reset") }
func (f *fakeController) Reload()                     { f.record("reload") }
func (f *fakeController) Categories() []string        { return f.cats }

func (f *fakeController) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// syncBuffer is written from load goroutines and read by assertions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestREPL(ctrl controller) (*repl, *syncBuffer) {
	out := &syncBuffer{}
	return &repl{
		out:    out,
		format: output.FormatTable,
		logger: logging.NewNopLogger(),
		sess:   ctrl,
	}, out
}

func TestDispatch(t *testing.T) {
	ctrl := &fakeController{cats: []string{"Roman", "Poetry"}}
	r, out := newTestREPL(ctrl)

	lines := []string{
		"hugo",
		"/enter quichotte",
		"/cat Roman",
		"/cat",
		"/reset",
		"/reload",
		"/cats",
		"/bogus",
	}
	for _, line := range lines {
		assert.False(t, r.dispatch(line), line)
	}
	assert.True(t, r.dispatch("/quit"))

	assert.Equal(t, []string{
		"query:hugo",
		"submit:quichotte",
		"category:Roman",
		"reset",
		"reload",
	}, ctrl.Events())

	text := out.String()
	assert.Contains(t, text, "usage: /cat NAME")
	assert.Contains(t, text, "Roman\nPoetry")
	assert.Contains(t, text, "unknown command /bogus")
}

func TestRenderWritesHeaderAndTable(t *testing.T) {
	r, out := newTestREPL(&fakeController{})

	r.Render([]records.Record{{
		ID:       records.NewID(1),
		Title:    "Frankenstein",
		Author:   "Mary Shelley",
		Category: "Roman",
		Source:   records.SourceLocal,
	}}, "frank", "Roman", session.Meta{Pending: true, Generation: 2})
	r.RenderError(errors.New("local source failed: boom"))

	text := out.String()
	assert.Contains(t, text, `1 result(s) for "frank" in "Roman"`)
	assert.Contains(t, text, "external catalog loading")
	assert.Contains(t, text, "Frankenstein")
	assert.Contains(t, text, "local source failed: boom")
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	ctrl := &fakeController{}
	r, _ := newTestREPL(ctrl)

	err := r.run(context.Background(), strings.NewReader("hugo\n/reset\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"reload", "query:hugo", "reset"}, ctrl.Events())
}

func TestRunStopsOnCancel(t *testing.T) {
	r, _ := newTestREPL(&fakeController{})
	ctx, cancel := context.WithCancel(context.Background())

	pr, pw := io.Pipe()
	defer pw.Close()

	errc := make(chan error, 1)
	go func() { errc <- r.run(ctx, pr) }()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestBrowseCommandEndToEnd(t *testing.T) {
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "titre": "Don Quichotte", "auteur": "Cervantes",
			"annee": 1605, "categorie": "Roman", "fichier": "q.pdf", "est_emprunte": false}]`))
	}))
	defer local.Close()
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"count": 0, "results": []}`))
	}))
	defer external.Close()

	client, err := shelf.New(
		shelf.WithLocalURL(local.URL),
		shelf.WithGutendexURL(external.URL),
		shelf.WithGutendexRPS(0),
		shelf.WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, err)
	defer client.Close()

	cmd := NewCommand(&appcontext.Mock{ClientValue: client, Format: "table"})
	pr, pw := io.Pipe()
	out := &syncBuffer{}
	cmd.SetIn(pr)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--debounce", "0s"})

	errc := make(chan error, 1)
	go func() { errc <- cmd.ExecuteContext(context.Background()) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Don Quichotte")
	}, 5*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(pw, "/enter nothing-matches\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `0 result(s) for "nothing-matches"`)
	}, 5*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(pw, "/quit\n")
	require.NoError(t, err)
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("browse did not exit on /quit")
	}
	_ = pw.Close()
}

func TestBrowseCommandClientError(t *testing.T) {
	cmd := NewCommand(&appcontext.Mock{ClientErr: errors.New("no store")})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	assert.EqualError(t, err, "no store")
}
