package kv

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
)

// File is a Store persisted as one JSON object of key to string value.
// The file is re-read on every access so edits made by another process are
// seen, and every write goes through a temp file and a rename.
type File struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*File)(nil)

// NewFile returns a store backed by the JSON file at path. The parent
// directory is created if needed; the file itself is created on first write.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.NewConfigError("store", "file store needs a path", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", filepath.Dir(path), err)
	}
	return &File{path: path}, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Get implements Store. A file that is not a JSON object reports ErrStoreCorrupt.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return nil, err
	}
	v, ok := data[key]
	if !ok {
		return nil, notFound(key)
	}
	return []byte(v), nil
}

// Put implements Store. A corrupt file is replaced rather than merged.
func (f *File) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		data = make(map[string]string)
	}
	data[key] = string(value)
	return f.save(data)
}

// Delete implements Store.
func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		data = make(map[string]string)
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return f.save(data)
}

// Close implements Store.
func (f *File) Close() error {
	return nil
}

func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", f.path, err)
	}
	if len(raw) == 0 {
		return make(map[string]string), nil
	}

	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Join(errors.ErrStoreCorrupt, errors.WrapParse("json", f.path, err))
	}
	return data, nil
}

func (f *File) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.WrapParse("json", f.path, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapIO("rename", f.path, err)
	}
	return nil
}
