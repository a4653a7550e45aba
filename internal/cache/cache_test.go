package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/records"
)

type fakeFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	raws    []records.Raw
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, search string) ([]records.Raw, error) {
	f.calls.Add(1)
	if search != "" {
		return nil, errors.New("unexpected search " + search)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.raws, f.err
}

func book(id int64, title string) records.Raw {
	return records.External{Record: records.Record{ID: records.NewID(id), Title: title}}
}

func TestGetFetchesOnce(t *testing.T) {
	f := &fakeFetcher{raws: []records.Raw{book(1, "A"), book(2, "B")}}
	c := NewExternal(f, WithLogger(logging.NewNopLogger()))
	defer c.Close()

	assert.False(t, c.Resolved())

	for i := 0; i < 3; i++ {
		raws, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.Len(t, raws, 2)
	}

	assert.True(t, c.Resolved())
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, Stats{Resolved: true, Records: 2, Fetches: 1}, c.Stats())
}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{}), raws: []records.Raw{book(1, "A")}}
	c := NewExternal(f, WithLogger(logging.NewNopLogger()))
	defer c.Close()

	const callers = 16
	var wg sync.WaitGroup
	results := make([][]records.Raw, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raws, err := c.Get(context.Background())
			assert.NoError(t, err)
			results[i] = raws
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, r := range results {
		assert.Len(t, r, 1)
	}
}

func TestFailureSettlesEmpty(t *testing.T) {
	f := &fakeFetcher{err: errors.New("gutendex down")}
	logger := logging.NewTestLogger(t)
	c := NewExternal(f, WithLogger(logger.Logger))
	defer c.Close()

	raws, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, raws)
	assert.Empty(t, raws)
	assert.True(t, c.Resolved())

	_, _ = c.Get(context.Background())
	assert.Equal(t, int32(1), f.calls.Load(), "an empty snapshot is still cached")
	logger.AssertContains(t, "External catalog unavailable")
}

func TestCallerCancelDoesNotAbortFetch(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{}), raws: []records.Raw{book(7, "Late")}}
	c := NewExternal(f, WithLogger(logging.NewNopLogger()))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		errc <- err
	}()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.False(t, c.Resolved())

	close(f.release)
	raws, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "Late", raws[0].Base().Title)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCloseAbortsFetch(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{})}
	c := NewExternal(f, WithLogger(logging.NewNopLogger()))

	done := make(chan []records.Raw, 1)
	go func() {
		raws, _ := c.Get(context.Background())
		done <- raws
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Close()
	select {
	case raws := <-done:
		assert.Empty(t, raws)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Close")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	f := &fakeFetcher{raws: []records.Raw{book(1, "A"), book(2, "B")}}
	c := NewExternal(f, WithLogger(logging.NewNopLogger()))
	defer c.Close()

	first, err := c.Get(context.Background())
	require.NoError(t, err)
	first[0] = book(99, "Mutated")

	second, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", second[0].Base().Title)
}
