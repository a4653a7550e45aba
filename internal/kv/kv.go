// Package kv provides the durable key-value stores that back user-local state.
//
// Stores hold opaque byte values under string keys. Three backends exist:
// an in-memory map for tests and ephemeral sessions, a JSON file written
// atomically, and a SQLite table accessed through bun.
package kv

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/agentstation/shelf/pkg/errors"
)

// Store is a durable string-keyed byte store.
type Store interface {
	// Get returns the value stored under key, or an error satisfying
	// errors.IsNotFound when the key is missing.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the backend.
	Close() error
}

// Open opens a store from a URI:
//
//	memory://                 in-process map
//	file:///path/state.json   JSON file
//	sqlite:///path/state.db   SQLite database
//
// A bare path is treated as a JSON file.
func Open(ctx context.Context, uri string) (Store, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, errors.NewConfigError("store", "empty store uri", nil)
	}
	if uri == "sqlite://:memory:" {
		return NewSQLite(ctx, ":memory:")
	}
	if !strings.Contains(uri, "://") {
		return NewFile(filepath.Clean(uri))
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.NewConfigError("store", "invalid store uri "+uri, err)
	}

	path := u.Path
	if u.Host != "" {
		// file://relative/path.json parses "relative" as the host.
		path = u.Host + u.Path
	}

	switch u.Scheme {
	case "memory", "mem":
		return NewMemory(), nil
	case "file":
		return NewFile(path)
	case "sqlite", "sqlite3":
		return NewSQLite(ctx, path)
	default:
		return nil, errors.NewConfigError("store", "unsupported store scheme "+u.Scheme, nil)
	}
}

func notFound(key string) error {
	return errors.NewNotFoundError("key", key)
}
