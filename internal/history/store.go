package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store records publish attempts in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Writes that hit a locked database are retried with doubling delays from
// busyBackoff, at most busyAttempts times.
const (
	busyAttempts = 5
	busyBackoff  = 10 * time.Millisecond
)

// Open opens the history database at path, creating it and its directory
// when missing.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// Only the publish lane writes.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) open() error {
	if s == nil || s.db == nil {
		return errors.New("history store is not open")
	}
	return nil
}

func isBusy(err error) bool {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code()&0xff == sqlite3.SQLITE_BUSY
	}
	return false
}

// withBusyRetry runs op until it succeeds, fails with something other than
// SQLITE_BUSY, runs out of attempts, or ctx ends.
func withBusyRetry(ctx context.Context, op func() error) error {
	delay := busyBackoff
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || attempt == busyAttempts || !isBusy(err) {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
