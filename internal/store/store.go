// Package store provides the key-value storage the check cache persists
// into. Every backend stores opaque byte values under string keys; the file
// backend additionally requires values to be JSON documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/obfx/themecheck/internal/logging"
)

var log = logging.L("store")

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// UpdateFunc computes a new value from the current one. found is false when
// the key does not exist yet. Returning an error aborts the update.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Store is a small key-value store. Implementations are safe for concurrent
// use, and Update is atomic with respect to other writers of the same store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	Path    string
}

// Open returns the backend named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "memory", "":
		return NewMemory(), nil
	case "file":
		return OpenFile(cfg.Path)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "badger":
		return OpenBadger(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
