package kv

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
)

// entry is one row of the kv table.
type entry struct {
	bun.BaseModel `bun:"table:kv_entries,alias:kv"`

	Name      string    `bun:",pk"`
	Value     []byte    `bun:",notnull"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// SQLite is a Store kept in a single SQLite table.
type SQLite struct {
	db *bun.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (and if needed creates) the database at path. The special
// path ":memory:" opens a private in-memory database.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.NewConfigError("store", "sqlite store needs a path", nil)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", filepath.Dir(path), err)
		}
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, errors.WrapResource("open", "store", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.NewCreateTable().Model((*entry)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapResource("create", "table", "kv_entries", err)
	}
	return &SQLite{db: db}, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	e := new(entry)
	err := s.db.NewSelect().Model(e).Where("name = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.WrapResource("get", "key", key, err)
	}
	return e.Value, nil
}

// Put implements Store.
func (s *SQLite) Put(ctx context.Context, key string, value []byte) error {
	e := &entry{Name: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(e).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WrapResource("put", "key", key, err)
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().Model((*entry)(nil)).Where("name = ?", key).Exec(ctx)
	return errors.WrapResource("delete", "key", key, err)
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
