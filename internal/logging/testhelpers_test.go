package logging

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

type memDest struct {
	name    string
	mu      sync.Mutex
	records []Record
	fail    error
	gate    chan struct{}
	closed  bool
}

func newMemDest(name string) *memDest {
	return &memDest{name: name}
}

func (m *memDest) Name() string { return m.name }

func (m *memDest) Write(rec Record) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memDest) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *memDest) snapshot() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func (m *memDest) texts() []string {
	recs := m.snapshot()
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Text)
	}
	return out
}

var errBrokenPipe = errors.New("broken pipe")

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}
