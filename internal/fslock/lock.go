// Package fslock provides the filesystem lock shared by every operation that
// touches the drop folder or the sorted directories.
package fslock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const defaultRetryDelay = 50 * time.Millisecond

// Lock is a mutual-exclusion lock held for a whole ingestion pass. Inside the
// process it behaves like a mutex whose acquisition honours context
// cancellation; when a path is configured it additionally holds an advisory
// flock so cooperating tools (or a second dropcast CLI) see the same lock.
type Lock struct {
	sem   chan struct{}
	file  *flock.Flock
	path  string
	retry time.Duration
}

// New returns a lock backed by the file at path. An empty path yields an
// in-process lock only.
func New(path string) *Lock {
	l := &Lock{sem: make(chan struct{}, 1), retry: defaultRetryDelay}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		l.path = trimmed
		l.file = flock.New(trimmed)
	}
	return l
}

// Path reports the lock file location, if any.
func (l *Lock) Path() string {
	return l.path
}

// Acquire blocks until the lock is held or ctx ends. The returned release
// function must be called exactly once.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if l.file != nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			<-l.sem
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
		ok, err := l.file.TryLockContext(ctx, l.retry)
		if err != nil || !ok {
			<-l.sem
			if err == nil {
				err = ctx.Err()
			}
			return nil, fmt.Errorf("acquire %s: %w", l.path, err)
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		if l.file != nil {
			_ = l.file.Unlock()
		}
		<-l.sem
	}, nil
}

// TryAcquire takes the lock only if it is free right now.
func (l *Lock) TryAcquire() (func(), bool, error) {
	select {
	case l.sem <- struct{}{}:
	default:
		return nil, false, nil
	}
	if l.file != nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			<-l.sem
			return nil, false, fmt.Errorf("create lock dir: %w", err)
		}
		ok, err := l.file.TryLock()
		if err != nil || !ok {
			<-l.sem
			return nil, false, err
		}
	}
	return func() {
		if l.file != nil {
			_ = l.file.Unlock()
		}
		<-l.sem
	}, true, nil
}
