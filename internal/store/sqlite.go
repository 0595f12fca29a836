package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS options (
	name  TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLite stores each key as a row of an options table.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite store: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("sqlite store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", buildSQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// buildSQLiteDSN enables WAL and a busy timeout so concurrent processes
// wait for each other instead of failing with SQLITE_BUSY. Transactions
// take the write lock up front.
func buildSQLiteDSN(path string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite store: get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if err := upsertOption(ctx, s.db, key, value); err != nil {
		return fmt.Errorf("sqlite store: set %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer tx.Rollback()

	var cur []byte
	found := true
	err = tx.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, key).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return fmt.Errorf("sqlite store: read %q: %w", key, err)
	}

	next, err := fn(cur, found)
	if err != nil {
		return err
	}
	if err := upsertOption(ctx, tx, key, next); err != nil {
		return fmt.Errorf("sqlite store: write %q: %w", key, err)
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertOption(ctx context.Context, db execer, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO options (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}
