package shelf

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/shelf/internal/kv"
	"github.com/agentstation/shelf/internal/sources/gutendex"
	"github.com/agentstation/shelf/internal/sources/local"
	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
)

// Option is a function that configures a Client
type Option func(*config) error

// config holds the resolved options
type config struct {
	storeURI     string
	store        kv.Store
	overridesKey string
	localURL     string
	localToken   string
	gutendexURL  string
	gutendexRPS  float64
	httpTimeout  time.Duration
	logger       *zerolog.Logger
}

func defaultConfig() *config {
	return &config{
		storeURI:     "memory://",
		overridesKey: constants.OverridesKey,
		localURL:     local.DefaultBaseURL,
		gutendexURL:  gutendex.DefaultBaseURL,
		gutendexRPS:  constants.DefaultExternalRPS,
		httpTimeout:  constants.DefaultHTTPTimeout,
	}
}

// WithStoreURI selects the durable store backing the overrides:
// memory://, file:///path/overrides.json or sqlite:///path/shelf.db.
func WithStoreURI(uri string) Option {
	return func(c *config) error {
		if uri == "" {
			return errors.NewValidationError("store", uri, "store URI must not be empty")
		}
		c.storeURI = uri
		return nil
	}
}

// WithStore uses an already opened store. The Client does not close it.
func WithStore(store kv.Store) Option {
	return func(c *config) error {
		c.store = store
		return nil
	}
}

// WithOverridesKey changes the key the override mapping is stored under.
func WithOverridesKey(key string) Option {
	return func(c *config) error {
		if key == "" {
			return errors.NewValidationError("overrides_key", key, "key must not be empty")
		}
		c.overridesKey = key
		return nil
	}
}

// WithLocalURL sets the local backend root.
func WithLocalURL(url string) Option {
	return func(c *config) error {
		c.localURL = url
		return nil
	}
}

// WithLocalToken sends a bearer token to the local backend.
func WithLocalToken(token string) Option {
	return func(c *config) error {
		c.localToken = token
		return nil
	}
}

// WithGutendexURL sets the external catalog root.
func WithGutendexURL(url string) Option {
	return func(c *config) error {
		c.gutendexURL = url
		return nil
	}
}

// WithGutendexRPS throttles the external catalog. Zero disables throttling.
func WithGutendexRPS(rps float64) Option {
	return func(c *config) error {
		if rps < 0 {
			return errors.NewValidationError("gutendex_rps", rps, "rate must not be negative")
		}
		c.gutendexRPS = rps
		return nil
	}
}

// WithHTTPTimeout sets the transport timeout of both source clients.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.NewValidationError("http_timeout", d, "timeout must be positive")
		}
		c.httpTimeout = d
		return nil
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
