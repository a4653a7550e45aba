// Package overrides implements the user-local "on loan" override layer.
//
// Overrides live in a single durable key as a JSON object mapping "source:id"
// to a boolean. An entry, once present, wins over whatever the source reports
// until it is cleared. Reading never fails: missing, unreadable or malformed
// storage reads as an empty mapping.
package overrides

import (
	"context"
	"encoding/json"
	"maps"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/logging"
	"github.com/agentstation/shelf/pkg/records"
)

// Mapping is a snapshot of override entries keyed by records.Key.String().
type Mapping map[string]bool

// Entry is one override, used for listing.
type Entry struct {
	Key    string `json:"key"`
	OnLoan bool   `json:"on_loan"`
}

// Entries returns the mapping as entries sorted by key.
func (m Mapping) Entries() []Entry {
	out := make([]Entry, 0, len(m))
	for k, v := range m {
		out = append(out, Entry{Key: k, OnLoan: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Backend is the durable storage the mapping lives in. The stores in
// internal/kv satisfy it. Get must report a missing key with an error for
// which errors.IsNotFound is true.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store persists the override mapping in a Backend.
type Store struct {
	backend Backend
	key     string
	logger  *zerolog.Logger

	// mu serializes read-modify-write cycles of Set and Clear.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the durable key the mapping is stored under.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used to report unreadable storage.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     constants.OverridesKey,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the current mapping. It never fails; anything that cannot be
// read as a JSON object yields an empty mapping.
func (s *Store) Read(ctx context.Context) Mapping {
	raw, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("key", s.key).Msg("Override store unreadable, treating as empty")
		}
		return Mapping{}
	}

	m, err := Decode(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Override store corrupt, treating as empty")
		return Mapping{}
	}
	return m
}

// Write replaces the stored mapping.
func (s *Store) Write(ctx context.Context, m Mapping) error {
	if m == nil {
		m = Mapping{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return errors.WrapParse("json", s.key, err)
	}
	return errors.WrapResource("persist", "override", s.key, s.backend.Put(ctx, s.key, raw))
}

// Set records an override for key and persists the mapping.
func (s *Store) Set(ctx context.Context, key records.Key, onLoan bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.Read(ctx)
	m[key.String()] = onLoan
	return s.Write(ctx, m)
}

// Clear removes the override for key. Clearing an absent key does nothing.
func (s *Store) Clear(ctx context.Context, key records.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.Read(ctx)
	if _, ok := m[key.String()]; !ok {
		return nil
	}
	delete(m, key.String())
	return s.Write(ctx, m)
}

// Decode parses a stored mapping. Content that is not a JSON object is
// reported as ErrStoreCorrupt. Non-boolean values are coerced with
// NormalizeFlag.
func Decode(raw []byte) (Mapping, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Join(errors.ErrStoreCorrupt, errors.WrapParse("json", "overrides", err))
	}
	if obj == nil {
		// "null" decodes without error but is not an object.
		return nil, errors.ErrStoreCorrupt
	}

	m := make(Mapping, len(obj))
	for k, v := range obj {
		m[k] = NormalizeFlag(v)
	}
	return m, nil
}

// Resolve returns the effective loan flag for raw: the override when one
// exists for its key, otherwise the source-reported flag normalized with
// NormalizeFlag. A nil mapping has no overrides.
func Resolve(raw records.Raw, m Mapping) bool {
	if v, ok := m[raw.Base().Key().String()]; ok {
		return v
	}
	return NormalizeFlag(raw.ReportedLoan())
}

// Clone returns a copy of m that is safe to mutate.
func (m Mapping) Clone() Mapping {
	if m == nil {
		return Mapping{}
	}
	return maps.Clone(m)
}
