package logging

import (
	"context"
	"sync"
	"time"
)

const defaultStreamCapacity = 512

// LogEvent is the structured form of a record served by /api/logs and kept
// in the event archive.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Lane      string            `json:"lane,omitempty"`
	ItemPath  string            `json:"item_path,omitempty"`
	AttemptID string            `json:"attempt_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogEventSink receives every event the hub publishes, after sequencing.
type LogEventSink interface {
	Append(LogEvent)
}

// StreamHub is a sink destination holding the most recent events in a fixed
// ring. Long-poll readers wait on a channel that is closed and replaced on
// every publish, so a waiter can also select on its request context.
type StreamHub struct {
	mu      sync.Mutex
	ring    []LogEvent
	start   int // index of the oldest event
	count   int
	lastSeq uint64
	changed chan struct{}
	sinks   []LogEventSink
}

// NewStreamHub returns a hub keeping up to capacity events (512 when
// capacity is not positive).
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = defaultStreamCapacity
	}
	return &StreamHub{
		ring:    make([]LogEvent, capacity),
		changed: make(chan struct{}),
	}
}

// AddSink registers a sink such as the event archive.
func (h *StreamHub) AddSink(sink LogEventSink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

func (h *StreamHub) Name() string { return "stream" }

// Write publishes a sink record. Prompt echoes stay out of the stream.
func (h *StreamHub) Write(rec Record) error {
	if rec.Interactive {
		return nil
	}
	h.Publish(EventFromRecord(rec))
	return nil
}

// Publish sequences evt, stores it (evicting the oldest event when full),
// wakes waiting readers and hands the event to every sink.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.lastSeq++
	evt.Sequence = h.lastSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	capacity := len(h.ring)
	if h.count < capacity {
		h.ring[(h.start+h.count)%capacity] = evt
		h.count++
	} else {
		h.ring[h.start] = evt
		h.start = (h.start + 1) % capacity
	}
	close(h.changed)
	h.changed = make(chan struct{})
	sinks := h.sinks
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Fetch returns up to limit events with a sequence greater than since, plus
// the cursor for the next call. With wait set and nothing newer buffered it
// blocks until an event arrives or ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		h.mu.Lock()
		events, next := h.afterLocked(since, limit)
		changed := h.changed
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, next, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, next, ctx.Err()
		case <-changed:
		}
	}
}

// Tail returns the newest limit events and the current cursor.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}
	return h.copyLocked(h.count-n, n), h.lastSeq
}

// FirstSequence reports the oldest sequence still buffered, or the last
// assigned sequence when the hub is empty.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return h.lastSeq
	}
	return h.ring[h.start].Sequence
}

// afterLocked selects events newer than since. Sequences are contiguous in
// the ring, so the offset is computed instead of searched. When the result
// is truncated by limit the cursor is the last returned sequence, so the
// caller does not skip the remainder.
func (h *StreamHub) afterLocked(since uint64, limit int) ([]LogEvent, uint64) {
	if h.count == 0 || since >= h.lastSeq {
		return nil, h.lastSeq
	}
	first := h.ring[h.start].Sequence
	offset := 0
	if since >= first {
		offset = int(since - first + 1)
	}
	n := h.count - offset
	if limit > 0 && limit < n {
		n = limit
	}
	events := h.copyLocked(offset, n)
	if offset+n < h.count {
		return events, events[len(events)-1].Sequence
	}
	return events, h.lastSeq
}

// copyLocked copies n events starting at logical position offset.
func (h *StreamHub) copyLocked(offset, n int) []LogEvent {
	if n <= 0 {
		return nil
	}
	out := make([]LogEvent, n)
	for i := range out {
		out[i] = h.ring[(h.start+offset+i)%len(h.ring)]
	}
	return out
}

// EventFromRecord maps a sink record onto a LogEvent. The lane, item path
// and attempt id fields become columns; everything else stays in Fields.
func EventFromRecord(rec Record) LogEvent {
	event := LogEvent{
		Timestamp: rec.Time.UTC(),
		Level:     rec.Severity.String(),
		Message:   rec.Text,
		Component: rec.Prefix,
	}
	for _, f := range rec.Fields {
		switch f.Key {
		case FieldLane:
			event.Lane = f.Value
		case FieldItemPath:
			event.ItemPath = f.Value
		case FieldAttemptID:
			event.AttemptID = f.Value
		default:
			if event.Fields == nil {
				event.Fields = make(map[string]string)
			}
			event.Fields[f.Key] = f.Value
		}
	}
	return event
}
