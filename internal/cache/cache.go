// Package cache holds the once-per-session snapshot of the external catalog.
// It uses patrickmn/go-cache for storage and singleflight so that concurrent
// loads share one in-flight fetch.
package cache

import (
	"context"
	"slices"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/records"
)

const snapshotKey = "external"

// Fetcher is the external source the cache fills from.
type Fetcher interface {
	Fetch(ctx context.Context, search string) ([]records.Raw, error)
}

// External fetches the external catalog at most once and serves the settled
// snapshot afterwards. A failed fetch settles as an empty snapshot.
type External struct {
	fetcher Fetcher
	store   *gocache.Cache
	group   singleflight.Group
	fetches atomic.Int64

	base   context.Context
	cancel context.CancelFunc
	logger *zerolog.Logger
}

// Option configures an External cache.
type Option func(*External)

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(e *External) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithContext sets the parent context of the shared fetch. Values are kept,
// cancellation comes only from the parent or Close.
func WithContext(ctx context.Context) Option {
	return func(e *External) {
		if ctx != nil {
			e.base = ctx
		}
	}
}

// NewExternal creates an empty cache over fetcher.
func NewExternal(fetcher Fetcher, opts ...Option) *External {
	e := &External{
		fetcher: fetcher,
		store:   gocache.New(gocache.NoExpiration, 0),
		base:    context.Background(),
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.base, e.cancel = context.WithCancel(e.base)
	return e
}

// Get returns the snapshot, fetching it first if no fetch has settled yet.
// The fetch is shared and runs detached from ctx: if ctx ends first, Get
// returns ctx.Err() and the fetch still settles into the cache.
func (e *External) Get(ctx context.Context) ([]records.Raw, error) {
	if snap, ok := e.snapshot(); ok {
		return snap, nil
	}

	ch := e.group.DoChan(snapshotKey, func() (any, error) {
		if snap, ok := e.snapshot(); ok {
			return snap, nil
		}
		return e.fill(), nil
	})

	select {
	case res := <-ch:
		return slices.Clone(res.Val.([]records.Raw)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *External) fill() []records.Raw {
	e.fetches.Add(1)
	raws, err := e.fetcher.Fetch(e.base, "")
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("source", string(records.SourceExternal)).
			Msg("External catalog unavailable, continuing with local records only")
		raws = nil
	}
	if raws == nil {
		raws = []records.Raw{}
	}
	e.store.Set(snapshotKey, raws, gocache.NoExpiration)
	e.logger.Debug().
		Int("records", len(raws)).
		Msg("External snapshot settled")
	return raws
}

func (e *External) snapshot() ([]records.Raw, bool) {
	v, ok := e.store.Get(snapshotKey)
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]records.Raw)), true
}

// Resolved reports whether a snapshot has settled.
func (e *External) Resolved() bool {
	_, ok := e.store.Get(snapshotKey)
	return ok
}

// Close aborts an in-flight fetch. A fetch aborted this way settles empty.
func (e *External) Close() {
	e.cancel()
}

// Stats describes the cache for diagnostics.
type Stats struct {
	Resolved bool  `json:"resolved"`
	Records  int   `json:"records"`
	Fetches  int64 `json:"fetches"`
}

// Stats returns current cache statistics.
func (e *External) Stats() Stats {
	s := Stats{Fetches: e.fetches.Load()}
	if v, ok := e.store.Get(snapshotKey); ok {
		s.Resolved = true
		s.Records = len(v.([]records.Raw))
	}
	return s
}
