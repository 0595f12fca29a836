package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps all keys in one JSON object on disk, like a host options
// table. Writes replace the file atomically and hold an exclusive OS lock on
// a sibling ".lock" file, so separate processes sharing the path do not
// lose each other's updates.
type File struct {
	mu       sync.Mutex
	path     string
	lockPath string
}

func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file store: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("file store: create directory: %w", err)
	}
	return &File{path: path, lockPath: path + ".lock"}, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		v  []byte
		ok bool
	)
	err := f.withLock(false, func() error {
		values, err := f.read()
		if err != nil {
			return err
		}
		raw, found := values[key]
		v, ok = clone(raw), found
		return nil
	})
	return v, ok, err
}

func (f *File) Set(ctx context.Context, key string, value []byte) error {
	return f.Update(ctx, key, func([]byte, bool) ([]byte, error) {
		return value, nil
	})
}

func (f *File) Update(_ context.Context, key string, fn UpdateFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.withLock(true, func() error {
		values, err := f.read()
		if err != nil {
			return err
		}
		cur, ok := values[key]
		next, err := fn(clone(cur), ok)
		if err != nil {
			return err
		}
		if !json.Valid(next) {
			return fmt.Errorf("file store: value for %q is not valid JSON", key)
		}
		values[key] = next
		return f.write(values)
	})
}

func (f *File) Close() error { return nil }

func (f *File) withLock(exclusive bool, fn func() error) error {
	lf, err := os.OpenFile(f.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("file store: open lock: %w", err)
	}
	defer lf.Close()

	if err := lockFile(lf, exclusive); err != nil {
		return fmt.Errorf("file store: lock: %w", err)
	}
	defer func() {
		if err := unlockFile(lf); err != nil {
			log.Warn("file store unlock failed", "path", f.lockPath, "error", err)
		}
	}()

	return fn()
}

func (f *File) read() (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: read: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("file store: decode %s: %w", f.path, err)
	}
	return values, nil
}

func (f *File) write(values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file store: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file store: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: chmod: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: replace: %w", err)
	}
	return nil
}
