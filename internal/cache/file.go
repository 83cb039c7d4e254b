package cache

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"moff.io/frame-bridge/pkg/errors"
	"os"
	"path/filepath"
	"sync"
)

// File keeps every value in one json document that is rewritten on change.
type File struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

func OpenFile(path string) (*File, error) {
	f := &File{path: path, values: map[string]string{}}
	data, err := ioutil.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return f, nil
	case err != nil:
		return nil, errors.Wrapf(err, "read session file %v", path)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.values); err != nil {
		return nil, errors.Wrapf(err, "decode session file %v", path)
	}
	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flush()
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return f.flush()
}

// flush must be called with mu held. The document is replaced atomically.
func (f *File) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session file")
	}
	tmp, err := ioutil.TempFile(filepath.Dir(f.path), filepath.Base(f.path)+".*")
	if err != nil {
		return errors.Wrap(err, "create session temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close session file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrapf(err, "replace session file %v", f.path)
	}
	return nil
}
