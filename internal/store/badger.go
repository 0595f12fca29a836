package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const badgerConflictRetries = 5

// Badger stores keys in an embedded BadgerDB directory. Badger allows a
// single process per directory, so Update only has to serialize in-process.
type Badger struct {
	mu sync.Mutex
	db *badger.DB
}

// OpenBadger opens a persistent database at dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*Badger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("badger store: create directory: %w", err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger store: get %q: %w", key, err)
	}
	return v, true, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), clone(value))
	})
	if err != nil {
		return fmt.Errorf("badger store: set %q: %w", key, err)
	}
	return nil
}

// Update retries on transaction conflicts; fn may run more than once.
func (b *Badger) Update(ctx context.Context, key string, fn UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	for attempt := 0; attempt < badgerConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			var (
				cur   []byte
				found bool
			)
			item, err := txn.Get([]byte(key))
			switch {
			case err == nil:
				if cur, err = item.ValueCopy(nil); err != nil {
					return err
				}
				found = true
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}

			next, err := fn(cur, found)
			if err != nil {
				return err
			}
			return txn.Set([]byte(key), clone(next))
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		log.Debug("badger update conflict, retrying", "key", key, "attempt", attempt+1)
	}
	return fmt.Errorf("badger store: update %q: %w", key, err)
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface. Badger's
// info chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
