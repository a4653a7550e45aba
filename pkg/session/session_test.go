package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agentstation/shelf/internal/cache"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/overrides"
	"github.com/agentstation/shelf/pkg/records"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const wait = 2 * time.Second

// Fakes

type event struct {
	recs     []records.Record
	query    string
	category string
	meta     Meta
	err      error
}

type recorder struct {
	ch chan event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan event, 64)}
}

func (r *recorder) Render(recs []records.Record, query, category string, meta Meta) {
	r.ch <- event{recs: recs, query: query, category: category, meta: meta}
}

func (r *recorder) RenderError(err error) {
	r.ch <- event{err: err}
}

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(wait):
		t.Fatal("timed out waiting for a delivery")
		return event{}
	}
}

func (r *recorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case e := <-r.ch:
		t.Fatalf("unexpected delivery: query=%q category=%q meta=%+v err=%v", e.query, e.category, e.meta, e.err)
	case <-time.After(d):
	}
}

type localCall struct {
	query    string
	category string
}

type fakeLocal struct {
	mu    sync.Mutex
	calls []localCall
	fn    func(ctx context.Context, n int, q, c string) ([]records.Raw, error)
}

func (f *fakeLocal) Fetch(ctx context.Context, q, c string) ([]records.Raw, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, localCall{q, c})
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return []records.Raw{}, nil
	}
	return fn(ctx, n, q, c)
}

func (f *fakeLocal) Calls() []localCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]localCall(nil), f.calls...)
}

type fakeExternal struct {
	raws     []records.Raw
	release  chan struct{}
	resolved atomic.Bool
	gets     atomic.Int32
}

func (f *fakeExternal) Get(ctx context.Context) ([]records.Raw, error) {
	f.gets.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.resolved.Store(true)
	return f.raws, nil
}

func (f *fakeExternal) Resolved() bool {
	return f.resolved.Load()
}

type fakeOverrides struct {
	mu sync.Mutex
	m  overrides.Mapping
}

func (f *fakeOverrides) Read(context.Context) overrides.Mapping {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m.Clone()
}

func localBook(id int64, title, category string, loan any) records.Local {
	return records.Local{
		Record: records.Record{ID: records.NewID(id), Title: title, Category: category},
		Loan:   loan,
	}
}

func externalBook(id int64, title, category string) records.External {
	return records.External{Record: records.Record{ID: records.NewID(id), Title: title, Category: category}}
}

func newSession(t *testing.T, deps Deps, opts ...Option) *Session {
	t.Helper()
	if deps.Local == nil {
		deps.Local = &fakeLocal{}
	}
	if deps.External == nil {
		deps.External = &fakeExternal{}
	}
	if deps.Overrides == nil {
		deps.Overrides = &fakeOverrides{}
	}
	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	s, err := New(deps, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Tests

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.True(t, errors.IsValidationError(err))
}

func TestPartialThenFinal(t *testing.T) {
	rec := newRecorder()
	ext := &fakeExternal{
		release: make(chan struct{}),
		raws:    []records.Raw{externalBook(135, "Les Misérables", "Historical Fiction")},
	}
	local := &fakeLocal{fn: func(context.Context, int, string, string) ([]records.Raw, error) {
		return []records.Raw{localBook(1, "Les Misérables", "Roman", false)}, nil
	}}
	ovr := &fakeOverrides{m: overrides.Mapping{"local:1": true}}

	s := newSession(t, Deps{Local: local, External: ext, Overrides: ovr, Renderer: rec})
	s.Reload()

	partial := rec.next(t)
	require.NoError(t, partial.err)
	assert.True(t, partial.meta.Pending)
	assert.Equal(t, uint64(1), partial.meta.Generation)
	require.Len(t, partial.recs, 1)
	assert.True(t, partial.recs[0].OnLoan, "override wins over the reported flag")

	close(ext.release)
	final := rec.next(t)
	assert.False(t, final.meta.Pending)
	require.Len(t, final.recs, 2)
	assert.Equal(t, records.SourceLocal, final.recs[0].Source)
	assert.True(t, final.recs[0].OnLoan)
	assert.Equal(t, records.SourceExternal, final.recs[1].Source)
	assert.False(t, final.recs[1].OnLoan)

	rec.none(t, 50*time.Millisecond)
}

func TestPendingClearedOnceResolved(t *testing.T) {
	rec := newRecorder()
	ext := &fakeExternal{}
	s := newSession(t, Deps{External: ext, Renderer: rec})

	s.Reload()
	assert.True(t, rec.next(t).meta.Pending)
	assert.False(t, rec.next(t).meta.Pending)

	s.Reload()
	assert.False(t, rec.next(t).meta.Pending, "partial is not pending after the snapshot settled")
	assert.False(t, rec.next(t).meta.Pending)
}

func TestFilterAppliesToBothPhases(t *testing.T) {
	rec := newRecorder()
	local := &fakeLocal{fn: func(context.Context, int, string, string) ([]records.Raw, error) {
		// The backend filters too, but the session does not rely on it.
		return []records.Raw{
			localBook(1, "Les Misérables", "Roman", false),
			localBook(2, "Don Quichotte", "Roman", false),
		}, nil
	}}
	ext := &fakeExternal{raws: []records.Raw{
		externalBook(135, "Les Misérables", "Historical Fiction"),
		externalBook(84, "Frankenstein", "Gothic Fiction"),
	}}
	s := newSession(t, Deps{Local: local, External: ext, Renderer: rec})

	s.OnSubmit("mis")
	partial := rec.next(t)
	assert.Equal(t, "mis", partial.query)
	require.Len(t, partial.recs, 1)
	assert.Equal(t, "Les Misérables", partial.recs[0].Title)

	final := rec.next(t)
	require.Len(t, final.recs, 2)
	assert.Equal(t, records.SourceLocal, final.recs[0].Source)
	assert.Equal(t, records.SourceExternal, final.recs[1].Source)
}

func TestSupersededResultIsDropped(t *testing.T) {
	rec := newRecorder()
	releaseFirst := make(chan struct{})
	local := &fakeLocal{fn: func(_ context.Context, n int, q, _ string) ([]records.Raw, error) {
		if n == 0 {
			// Ignores cancellation, so only the generation check can drop it.
			<-releaseFirst
		}
		return []records.Raw{localBook(int64(n+1), q, "Roman", false)}, nil
	}}
	s := newSession(t, Deps{Local: local, Renderer: rec})

	s.OnSubmit("first")
	require.Eventually(t, func() bool { return len(local.Calls()) == 1 }, wait, time.Millisecond)
	s.OnSubmit("second")

	for i := 0; i < 2; i++ {
		e := rec.next(t)
		assert.Equal(t, "second", e.query)
		assert.Equal(t, uint64(2), e.meta.Generation)
	}

	close(releaseFirst)
	rec.none(t, 100*time.Millisecond)
	assert.Equal(t, uint64(2), s.Generation())
}

func TestAbortedLoadDeliversNothing(t *testing.T) {
	rec := newRecorder()
	var canceled atomic.Bool
	local := &fakeLocal{fn: func(ctx context.Context, n int, _, _ string) ([]records.Raw, error) {
		if n == 0 {
			<-ctx.Done()
			canceled.Store(true)
			return nil, ctx.Err()
		}
		return []records.Raw{}, nil
	}}
	s := newSession(t, Deps{Local: local, Renderer: rec})

	s.OnSubmit("a")
	require.Eventually(t, func() bool { return len(local.Calls()) == 1 }, wait, time.Millisecond)
	s.OnSubmit("ab")

	require.Eventually(t, canceled.Load, wait, time.Millisecond, "previous local request is cancelled")
	for i := 0; i < 2; i++ {
		e := rec.next(t)
		require.NoError(t, e.err, "a cancelled load is not an error")
		assert.Equal(t, "ab", e.query)
	}
	rec.none(t, 50*time.Millisecond)
}

func TestLocalErrorIsTerminal(t *testing.T) {
	rec := newRecorder()
	ext := &fakeExternal{}
	local := &fakeLocal{fn: func(context.Context, int, string, string) ([]records.Raw, error) {
		return nil, errors.NewAPIError("local", 500, "boom")
	}}
	s := newSession(t, Deps{Local: local, External: ext, Renderer: rec})

	s.Reload()
	e := rec.next(t)
	require.Error(t, e.err)
	var srcErr *errors.SourceError
	require.True(t, errors.As(e.err, &srcErr))
	assert.Equal(t, "local", srcErr.Source)

	rec.none(t, 50*time.Millisecond)
	assert.Equal(t, int32(0), ext.gets.Load(), "external is not consulted after a local failure")
}

func TestSourceErrorNotDoubleWrapped(t *testing.T) {
	rec := newRecorder()
	cause := &errors.SourceError{Source: "local", Err: errors.New("down")}
	local := &fakeLocal{fn: func(context.Context, int, string, string) ([]records.Raw, error) {
		return nil, cause
	}}
	s := newSession(t, Deps{Local: local, Renderer: rec})

	s.Reload()
	assert.Same(t, cause, rec.next(t).err)
}

func TestDebounceCoalescesTyping(t *testing.T) {
	rec := newRecorder()
	local := &fakeLocal{}
	s := newSession(t, Deps{Local: local, Renderer: rec}, WithDebounce(30*time.Millisecond))

	for _, text := range []string{"m", "mi", "mis"} {
		s.OnQueryChange(text)
	}
	assert.Empty(t, local.Calls(), "nothing fires before the quiet period")

	e := rec.next(t)
	assert.Equal(t, "mis", e.query)
	rec.next(t)
	rec.none(t, 80*time.Millisecond)
	assert.Equal(t, []localCall{{"mis", ""}}, local.Calls())
}

func TestSubmitBypassesAndClearsTimer(t *testing.T) {
	rec := newRecorder()
	local := &fakeLocal{}
	s := newSession(t, Deps{Local: local, Renderer: rec}, WithDebounce(40*time.Millisecond))

	s.OnQueryChange("draft")
	s.OnSubmit("final")

	assert.Equal(t, "final", rec.next(t).query)
	rec.next(t)
	rec.none(t, 100*time.Millisecond)
	assert.Equal(t, []localCall{{"final", ""}}, local.Calls())
}

func TestCategoryToggleUsesTypedText(t *testing.T) {
	rec := newRecorder()
	local := &fakeLocal{}
	s := newSession(t, Deps{Local: local, Renderer: rec}, WithDebounce(time.Hour))

	s.OnQueryChange("hugo")
	s.OnCategoryToggle("Roman")
	e := rec.next(t)
	assert.Equal(t, "hugo", e.query)
	assert.Equal(t, "Roman", e.category)
	rec.next(t)

	s.OnCategoryToggle("Roman")
	assert.Equal(t, "", rec.next(t).category, "toggling the active category clears it")
	rec.next(t)

	s.OnCategoryToggle("Conte")
	rec.next(t)
	rec.next(t)
	s.OnReset()
	e = rec.next(t)
	assert.Empty(t, e.query)
	assert.Empty(t, e.category)
	rec.next(t)

	assert.Equal(t, []localCall{{"hugo", "Roman"}, {"hugo", ""}, {"hugo", "Conte"}, {"", ""}}, local.Calls())
	assert.Equal(t, State{ID: s.ID(), Generation: 4}, s.State())
}

func TestZeroDebounceFiresImmediately(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, Deps{Renderer: rec}, WithDebounce(0))
	s.OnQueryChange("x")
	assert.Equal(t, "x", rec.next(t).query)
	rec.next(t)
}

func TestExternalFetchedOncePerSession(t *testing.T) {
	rec := newRecorder()
	var fetches atomic.Int32
	ext := cache.NewExternal(fetcherFunc(func(context.Context, string) ([]records.Raw, error) {
		fetches.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []records.Raw{externalBook(84, "Frankenstein", "Gothic Fiction")}, nil
	}), cache.WithLogger(logging.NewNopLogger()))

	s := newSession(t, Deps{External: ext, Renderer: rec})

	// Rapid supersession: every load asks the cache, only one fetch happens.
	s.OnSubmit("x")
	s.OnSubmit("y")
	s.OnSubmit("zzz")
	var final event
	for {
		final = rec.next(t)
		if final.query == "zzz" && !final.meta.Pending {
			break
		}
	}
	require.Empty(t, final.recs)

	s.OnReset()
	for {
		e := rec.next(t)
		if e.query == "" && len(e.recs) == 1 {
			assert.Equal(t, "Frankenstein", e.recs[0].Title)
			break
		}
	}
	assert.Equal(t, int32(1), fetches.Load())
}

func TestCategoriesAccumulate(t *testing.T) {
	rec := newRecorder()
	local := &fakeLocal{fn: func(_ context.Context, _ int, q, _ string) ([]records.Raw, error) {
		if q == "" {
			return []records.Raw{localBook(1, "A", "Roman", false), localBook(2, "B", " Conte ", false)}, nil
		}
		return []records.Raw{localBook(3, q, "Poésie", false)}, nil
	}}
	ext := &fakeExternal{raws: []records.Raw{externalBook(84, "Frankenstein", "Gothic Fiction")}}
	s := newSession(t, Deps{Local: local, External: ext, Renderer: rec})

	s.Reload()
	rec.next(t)
	rec.next(t)
	assert.Equal(t, []string{"Roman", "Conte", "Gothic Fiction"}, s.Categories())

	s.OnSubmit("vers")
	rec.next(t)
	rec.next(t)
	assert.Equal(t, []string{"Roman", "Conte", "Gothic Fiction", "Poésie"}, s.Categories(),
		"categories persist across loads")
}

func TestCloseStopsEverything(t *testing.T) {
	rec := newRecorder()
	started := make(chan struct{})
	local := &fakeLocal{fn: func(ctx context.Context, _ int, _, _ string) ([]records.Raw, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := newSession(t, Deps{Local: local, Renderer: rec}, WithDebounce(10*time.Millisecond))

	s.Reload()
	<-started
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s.OnQueryChange("late")
	s.OnSubmit("late")
	s.Reload()
	rec.none(t, 50*time.Millisecond)
	assert.Len(t, local.Calls(), 1)
	assert.True(t, s.State().Closed)
}

func TestCloseClosesOwnedCache(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	ext := cache.NewExternal(fetcherFunc(func(ctx context.Context, _ string) ([]records.Raw, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}), cache.WithLogger(logging.NewNopLogger()))

	rec := newRecorder()
	s := newSession(t, Deps{External: ext, Renderer: rec})
	s.Reload()
	rec.next(t)
	<-started

	done := make(chan struct{})
	go func() {
		_ = s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(wait):
		t.Fatal("Close did not return")
	}
}

type fetcherFunc func(ctx context.Context, search string) ([]records.Raw, error)

func (f fetcherFunc) Fetch(ctx context.Context, search string) ([]records.Raw, error) {
	return f(ctx, search)
}
