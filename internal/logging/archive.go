package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

const maxArchiveLine = 1 << 20

// EventArchive journals every hub event as one JSON line so /api/logs can
// serve cursors that have already left the in-memory ring. Sequence numbers
// are the hub's.
type EventArchive struct {
	path string

	mu      sync.Mutex
	file    *os.File
	written uint64
	failed  uint64
}

// NewEventArchive starts a fresh journal at path. An empty path returns a
// nil archive; every method treats nil as disabled.
func NewEventArchive(path string) (*EventArchive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if err := ensureLogDir(path); err != nil {
		return nil, fmt.Errorf("event archive dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("event archive: %w", err)
	}
	return &EventArchive{path: path, file: file}, nil
}

// Append journals evt. Failures only bump a counter; the hub must not block
// on a full disk. A closed archive reopens in append mode.
func (a *EventArchive) Append(evt LogEvent) {
	if a == nil {
		return
	}
	line, err := json.Marshal(evt)
	if err != nil {
		a.mu.Lock()
		a.failed++
		a.mu.Unlock()
		return
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		a.file, err = os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			a.file = nil
			a.failed++
			return
		}
	}
	if _, err := a.file.Write(line); err != nil {
		a.failed++
		return
	}
	a.written++
}

// ReadSince returns up to limit journaled events with a sequence above since
// (limit 0 means all) and the highest sequence scanned. A torn or corrupt
// line, as left by a crash mid-write, is skipped.
func (a *EventArchive) ReadSince(since uint64, limit int) ([]LogEvent, uint64, error) {
	if a == nil {
		return nil, since, nil
	}
	file, err := os.Open(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, since, nil
	}
	if err != nil {
		return nil, since, fmt.Errorf("event archive: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxArchiveLine)
	var events []LogEvent
	highest := since
	for scanner.Scan() {
		var evt LogEvent
		if json.Unmarshal(scanner.Bytes(), &evt) != nil {
			continue
		}
		highest = max(highest, evt.Sequence)
		if evt.Sequence <= since {
			continue
		}
		events = append(events, evt)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return events, highest, fmt.Errorf("event archive scan: %w", err)
	}
	return events, highest, nil
}

// Counts reports journaled events and failed writes.
func (a *EventArchive) Counts() (written, failed uint64) {
	if a == nil {
		return 0, 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written, a.failed
}

func (a *EventArchive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
