// Package shelf is the entry point of the shelf catalog view-model.
//
// A Client wires the local backend, the Gutendex catalog and the override
// store together. Each viewer gets its own Session from NewSession; the
// Session turns query and category events into reconciled, filtered results
// and hands them to a Renderer.
//
// Example usage:
//
//	client, err := shelf.New(
//	    shelf.WithLocalURL("http://localhost:8000"),
//	    shelf.WithStoreURI("file:///home/me/.shelf/overrides.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	sess, err := client.NewSession(session.RendererFuncs{
//	    OnRender: func(recs []records.Record, q, cat string, meta session.Meta) {
//	        fmt.Printf("%d records (pending=%v)\n", len(recs), meta.Pending)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//	sess.Reload()
package shelf

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/shelf/internal/cache"
	"github.com/agentstation/shelf/internal/kv"
	"github.com/agentstation/shelf/internal/sources/gutendex"
	"github.com/agentstation/shelf/internal/sources/local"
	"github.com/agentstation/shelf/internal/transport"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/overrides"
	"github.com/agentstation/shelf/pkg/query"
	"github.com/agentstation/shelf/pkg/reconcile"
	"github.com/agentstation/shelf/pkg/records"
	"github.com/agentstation/shelf/pkg/session"
)

// Compile-time interface checks.
var (
	_ Client    = (*client)(nil)
	_ Overrides = (*overrideAdmin)(nil)
)

// Client gives access to sessions, overrides and the raw sources.
type Client interface {
	// NewSession creates a Session with its own external snapshot.
	NewSession(r session.Renderer, opts ...session.Option) (*session.Session, error)

	// Load performs one merged, reconciled and filtered load. The external
	// snapshot behind it is fetched once per Client.
	Load(ctx context.Context, q, category string) ([]records.Record, error)

	// Overrides manages the override layer.
	Overrides() Overrides

	// FetchLocal lists raw records from the local backend.
	FetchLocal(ctx context.Context, q, category string) ([]records.Raw, error)

	// FetchExternal lists raw records from the external catalog.
	FetchExternal(ctx context.Context, search string) ([]records.Raw, error)

	// OnOverrideSet registers a callback for when an override is set
	OnOverrideSet(OverrideSetHook)

	// OnOverrideCleared registers a callback for when an override is cleared
	OnOverrideCleared(OverrideClearedHook)

	// Close releases the store if the Client opened it.
	Close() error
}

// Overrides is the administrative view of the override layer.
type Overrides interface {
	Set(ctx context.Context, key records.Key, onLoan bool) error
	Clear(ctx context.Context, key records.Key) error
	Get(ctx context.Context, key records.Key) (onLoan, ok bool)
	List(ctx context.Context) []overrides.Entry
}

type client struct {
	store     kv.Store
	ownsStore bool
	overrides *overrides.Store
	local     *local.Client
	gutendex  *gutendex.Client
	logger    *zerolog.Logger
	hooks     *hooks

	shared    *cache.External

	closeOnce sync.Once
}

// New creates a Client with the given options.
func New(opts ...Option) (Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}
	if cfg.logger == nil {
		cfg.logger = logging.Default()
	}

	c := &client{
		store:  cfg.store,
		logger: cfg.logger,
		hooks:  newHooks(),
	}
	if c.store == nil {
		store, err := kv.Open(context.Background(), cfg.storeURI)
		if err != nil {
			return nil, err
		}
		c.store = store
		c.ownsStore = true
	}

	c.overrides = overrides.New(c.store,
		overrides.WithKey(cfg.overridesKey),
		overrides.WithLogger(cfg.logger),
	)

	c.local = local.NewClient(
		local.WithBaseURL(cfg.localURL),
		local.WithLogger(cfg.logger),
		local.WithTransport(
			transport.WithTimeout(cfg.httpTimeout),
			transport.WithAuth(transport.TokenAuth(cfg.localToken)),
		),
	)
	c.gutendex = gutendex.NewClient(
		gutendex.WithBaseURL(cfg.gutendexURL),
		gutendex.WithRateLimit(cfg.gutendexRPS),
		gutendex.WithLogger(cfg.logger),
		gutendex.WithTransport(transport.WithTimeout(cfg.httpTimeout)),
	)
	c.shared = cache.NewExternal(c.gutendex, cache.WithLogger(c.logger))

	c.logger.Debug().
		Str("local_url", c.local.BaseURL()).
		Str("store", cfg.storeURI).
		Msg("Client ready")
	return c, nil
}

// NewSession creates a Session rendering to r.
func (c *client) NewSession(r session.Renderer, opts ...session.Option) (*session.Session, error) {
	ext := cache.NewExternal(c.gutendex, cache.WithLogger(c.logger))
	opts = append([]session.Option{session.WithLogger(c.logger)}, opts...)
	s, err := session.New(session.Deps{
		Local:     c.local,
		External:  ext,
		Overrides: c.overrides,
		Renderer:  r,
	}, opts...)
	if err != nil {
		ext.Close()
		return nil, err
	}
	return s, nil
}

// Load performs one merged load against the Client-wide snapshot.
func (c *client) Load(ctx context.Context, q, category string) ([]records.Record, error) {
	raws, err := c.local.Fetch(ctx, q, category)
	if err != nil {
		return nil, err
	}
	snapshot := c.overrides.Read(ctx)

	extRaws, err := c.shared.Get(ctx)
	if err != nil {
		return nil, err
	}
	merged := query.Merge(reconcile.All(raws, snapshot), reconcile.All(extRaws, snapshot))
	return query.Filter(merged, q, category), nil
}

// Overrides returns the override administration view.
func (c *client) Overrides() Overrides {
	return &overrideAdmin{store: c.overrides, hooks: c.hooks}
}

// FetchLocal lists raw records from the local backend.
func (c *client) FetchLocal(ctx context.Context, q, category string) ([]records.Raw, error) {
	return c.local.Fetch(ctx, q, category)
}

// FetchExternal lists raw records from the external catalog, bypassing any snapshot.
func (c *client) FetchExternal(ctx context.Context, search string) ([]records.Raw, error) {
	return c.gutendex.Fetch(ctx, search)
}

// OnOverrideSet registers a callback for when an override is set
func (c *client) OnOverrideSet(fn OverrideSetHook) {
	c.hooks.OnOverrideSet(fn)
}

// OnOverrideCleared registers a callback for when an override is cleared
func (c *client) OnOverrideCleared(fn OverrideClearedHook) {
	c.hooks.OnOverrideCleared(fn)
}

// Close releases the resources the Client owns.
func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.shared.Close()
		if c.ownsStore {
			err = c.store.Close()
		}
	})
	return err
}

type overrideAdmin struct {
	store *overrides.Store
	hooks *hooks
}

func (o *overrideAdmin) Set(ctx context.Context, key records.Key, onLoan bool) error {
	if err := o.store.Set(ctx, key, onLoan); err != nil {
		return err
	}
	o.hooks.triggerSet(key, onLoan)
	return nil
}

func (o *overrideAdmin) Clear(ctx context.Context, key records.Key) error {
	if err := o.store.Clear(ctx, key); err != nil {
		return err
	}
	o.hooks.triggerCleared(key)
	return nil
}

func (o *overrideAdmin) Get(ctx context.Context, key records.Key) (bool, bool) {
	v, ok := o.store.Read(ctx)[key.String()]
	return v, ok
}

func (o *overrideAdmin) List(ctx context.Context) []overrides.Entry {
	return o.store.Read(ctx).Entries()
}
