// Package session implements the catalog view-model: one Session per viewer,
// turning query and category events into rendered, reconciled results.
//
// Every load gets a generation number. Starting a load cancels the previous
// local request, and a result is delivered only while its generation is the
// newest one. A load renders twice: the local records as soon as they arrive,
// then the merged local and external records once the external snapshot
// settles. A local failure other than cancellation ends the load with
// RenderError.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/overrides"
	"github.com/agentstation/shelf/pkg/query"
	"github.com/agentstation/shelf/pkg/reconcile"
	"github.com/agentstation/shelf/pkg/records"
)

// LocalFetcher loads records from the local backend. It must honor ctx.
type LocalFetcher interface {
	Fetch(ctx context.Context, query, category string) ([]records.Raw, error)
}

// ExternalSource serves the external snapshot.
type ExternalSource interface {
	Get(ctx context.Context) ([]records.Raw, error)
	Resolved() bool
}

// OverridesReader reads the current override mapping.
type OverridesReader interface {
	Read(ctx context.Context) overrides.Mapping
}

// Deps are the collaborators of a Session. All fields are required.
type Deps struct {
	Local     LocalFetcher
	External  ExternalSource
	Overrides OverridesReader
	Renderer  Renderer
}

func (d Deps) validate() error {
	switch {
	case d.Local == nil:
		return errors.NewValidationError("Local", nil, "local fetcher is required")
	case d.External == nil:
		return errors.NewValidationError("External", nil, "external source is required")
	case d.Overrides == nil:
		return errors.NewValidationError("Overrides", nil, "overrides reader is required")
	case d.Renderer == nil:
		return errors.NewValidationError("Renderer", nil, "renderer is required")
	}
	return nil
}

// Session is the view-model for one viewer.
type Session struct {
	id       string
	deps     Deps
	debounce time.Duration
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// deliverMu is taken before mu. It serializes token issue with delivery.
	deliverMu sync.Mutex

	mu         sync.Mutex
	query      string
	category   string
	generation uint64
	cancelLoad context.CancelFunc
	timer      *time.Timer
	timerSeq   uint64
	categories []string
	seen       map[string]struct{}
	closed     bool

	wg sync.WaitGroup
}

// Option configures a Session.
type Option func(*config)

type config struct {
	id       string
	debounce time.Duration
	logger   *zerolog.Logger
	ctx      context.Context
}

// WithDebounce sets the quiet period for OnQueryChange. Zero fires at once.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithID sets the session id. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(c *config) {
		if id != "" {
			c.id = id
		}
	}
}

// WithContext sets the parent context of all loads.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// New creates an idle Session. Nothing is loaded until an event or Reload.
func New(deps Deps, opts ...Option) (*Session, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	cfg := &config{
		debounce: constants.DefaultDebounce,
		logger:   logging.Default(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}

	s := &Session{
		id:       cfg.id,
		deps:     deps,
		debounce: cfg.debounce,
		logger:   cfg.logger.With().Str("session_id", cfg.id).Logger(),
		seen:     make(map[string]struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(cfg.ctx)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// OnQueryChange records new query text and loads once input has been quiet
// for the debounce period.
func (s *Session) OnQueryChange(text string) {
	if s.debounce == 0 {
		s.fire(func() { s.query = text })
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.query = text
	s.stopTimerLocked()
	seq := s.timerSeq
	s.timer = time.AfterFunc(s.debounce, func() { s.fireTimer(seq) })
}

// OnSubmit sets the query and loads immediately.
func (s *Session) OnSubmit(text string) {
	s.fire(func() { s.query = text })
}

// OnCategoryToggle selects cat, or clears the category when cat is already
// selected, and loads immediately.
func (s *Session) OnCategoryToggle(cat string) {
	s.fire(func() {
		if s.category == cat {
			s.category = ""
		} else {
			s.category = cat
		}
	})
}

// OnReset clears the query and the category and loads immediately.
func (s *Session) OnReset() {
	s.fire(func() {
		s.query = ""
		s.category = ""
	})
}

// Reload loads the current query and category immediately.
func (s *Session) Reload() {
	s.fire(func() {})
}

func (s *Session) fireTimer(seq uint64) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.timerSeq {
		return
	}
	s.timer = nil
	s.startLocked()
}

// fire applies mutate to the state and starts a load.
func (s *Session) fire(mutate func()) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	mutate()
	s.stopTimerLocked()
	s.startLocked()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}

// startLocked issues a new generation and starts its load.
// Callers hold deliverMu and mu.
func (s *Session) startLocked() {
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelLoad = cancel

	p := query.Params{Query: s.query, Category: s.category}
	s.wg.Add(1)
	go s.load(ctx, cancel, gen, p)
}

func (s *Session) load(ctx context.Context, cancel context.CancelFunc, gen uint64, p query.Params) {
	defer s.wg.Done()
	defer cancel()

	logger := s.logger.With().Uint64("generation", gen).Logger()
	logger.Debug().
		Str("query", p.Query).
		Str("category", p.Category).
		Msg("Load started")

	raws, err := s.deps.Local.Fetch(ctx, p.Query, p.Category)
	if err != nil {
		if errors.IsCanceled(err) || ctx.Err() != nil {
			logger.Debug().Msg("Load superseded")
			return
		}
		logger.Warn().Err(err).Msg("Local load failed")
		s.deliver(gen, func() {
			s.deps.Renderer.RenderError(sourceError(err))
		})
		return
	}

	// One snapshot serves both phases of this load.
	snapshot := s.deps.Overrides.Read(s.ctx)
	local := reconcile.All(raws, snapshot)
	partial := p.Apply(local)
	pending := !s.deps.External.Resolved()

	delivered := s.deliver(gen, func() {
		s.noteCategories(partial)
		s.deps.Renderer.Render(partial, p.Query, p.Category, Meta{Pending: pending, Generation: gen})
	})
	if !delivered {
		logger.Debug().Msg("Load superseded")
		return
	}

	extRaws, err := s.deps.External.Get(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("Load superseded while waiting for external records")
		return
	}
	merged := p.Apply(query.Merge(local, reconcile.All(extRaws, snapshot)))

	delivered = s.deliver(gen, func() {
		s.noteCategories(merged)
		s.deps.Renderer.Render(merged, p.Query, p.Category, Meta{Generation: gen})
	})
	if delivered {
		logger.Debug().Int("records", len(merged)).Msg("Load complete")
	}
}

// deliver runs fn if gen is still the newest generation.
func (s *Session) deliver(gen uint64, fn func()) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	current := !s.closed && gen == s.generation
	s.mu.Unlock()
	if !current {
		return false
	}
	fn()
	return true
}

func (s *Session) noteCategories(recs []records.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range query.Categories(recs) {
		if _, ok := s.seen[c]; ok {
			continue
		}
		s.seen[c] = struct{}{}
		s.categories = append(s.categories, c)
	}
}

func sourceError(err error) error {
	var srcErr *errors.SourceError
	if errors.As(err, &srcErr) {
		return err
	}
	return errors.WrapSource(string(records.SourceLocal), err)
}

// Categories returns every category seen in delivered results, in first-seen order.
func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

// Generation returns the newest generation issued.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// State is a point-in-time view of a Session.
type State struct {
	ID         string `json:"id"`
	Query      string `json:"query"`
	Category   string `json:"category"`
	Generation uint64 `json:"generation"`
	Closed     bool   `json:"closed"`
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:         s.id,
		Query:      s.query,
		Category:   s.category,
		Generation: s.generation,
		Closed:     s.closed,
	}
}

// Close cancels in-flight loads, stops the debounce timer and waits for load
// goroutines to exit. No result is delivered after Close returns. If the
// external source has a Close method it is called too. Close is idempotent.
func (s *Session) Close() error {
	s.deliverMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.deliverMu.Unlock()
		return nil
	}
	s.closed = true
	s.stopTimerLocked()
	s.cancel()
	s.mu.Unlock()
	s.deliverMu.Unlock()

	if c, ok := s.deps.External.(interface{ Close() }); ok {
		c.Close()
	}
	s.wg.Wait()
	s.logger.Debug().Msg("Session closed")
	return nil
}
