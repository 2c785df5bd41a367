package logging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSinkPreservesProducerOrder(t *testing.T) {
	dest := newMemDest("mem")
	sink := NewSink(SinkOptions{Destinations: []Destination{dest}})
	defer sink.Close(time.Second)

	const producers = 8
	const perProducer = 200
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				sink.Log(fmt.Sprintf("p%d-%d", p, i))
			}
		}(p)
	}
	wg.Wait()
	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	records := dest.snapshot()
	if len(records) != producers*perProducer {
		t.Fatalf("expected %d records, got %d", producers*perProducer, len(records))
	}
	next := make(map[int]int)
	var lastSeq uint64
	for _, rec := range records {
		if rec.Seq <= lastSeq {
			t.Fatalf("sequence not increasing: %d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq
		var p, i int
		if _, err := fmt.Sscanf(rec.Text, "p%d-%d", &p, &i); err != nil {
			t.Fatalf("parse %q: %v", rec.Text, err)
		}
		if i != next[p] {
			t.Fatalf("producer %d out of order: got %d want %d", p, i, next[p])
		}
		next[p] = i + 1
	}
}

func TestSinkAttachDoesNotReplay(t *testing.T) {
	first := newMemDest("first")
	sink := NewSink(SinkOptions{Destinations: []Destination{first}})
	defer sink.Close(time.Second)

	for i := 0; i < 5; i++ {
		sink.Log(fmt.Sprintf("early-%d", i))
	}
	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	late := newMemDest("late")
	detach := sink.Attach(late)
	sink.Log("after-attach")
	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := late.texts(); len(got) != 1 || got[0] != "after-attach" {
		t.Fatalf("late destination should only see new records, got %v", got)
	}

	detach()
	sink.Log("after-detach")
	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := late.texts(); len(got) != 1 {
		t.Fatalf("detached destination received %v", got)
	}
	if got := first.texts(); len(got) != 7 {
		t.Fatalf("first destination should see everything, got %v", got)
	}
}

func TestSinkAttachSkipsRecordsStillQueued(t *testing.T) {
	slow := newMemDest("slow")
	slow.gate = make(chan struct{})
	sink := NewSink(SinkOptions{Destinations: []Destination{slow}})
	defer sink.Close(time.Second)

	sink.Log("queued-1")
	sink.Log("queued-2")
	late := newMemDest("late")
	sink.Attach(late)
	sink.Log("fresh")
	close(slow.gate)

	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := late.texts(); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("expected only the record emitted after attach, got %v", got)
	}
	if got := slow.texts(); len(got) != 3 {
		t.Fatalf("expected slow destination to receive all records, got %v", got)
	}
}

func TestSinkDestinationFailureIsIsolated(t *testing.T) {
	broken := newMemDest("relay:1")
	broken.fail = errBrokenPipe
	healthy := newMemDest("file")
	sink := NewSink(SinkOptions{Destinations: []Destination{broken, healthy}})
	defer sink.Close(time.Second)

	sink.Warn("disk almost full")
	sink.Log("still going")
	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	records := healthy.snapshot()
	if len(records) != 4 {
		t.Fatalf("expected 2 records plus 2 failure reports, got %d: %v", len(records), healthy.texts())
	}
	if records[0].Text != "disk almost full" {
		t.Fatalf("expected original record first, got %q", records[0].Text)
	}
	report := records[1]
	if report.Severity != SeverityError || !strings.Contains(report.Text, "relay:1") {
		t.Fatalf("expected error report naming failed destination, got %+v", report)
	}
	if records[2].Text != "still going" {
		t.Fatalf("expected delivery to continue, got %q", records[2].Text)
	}
	if stats := sink.Stats(); stats.DestinationErrors != 2 {
		t.Fatalf("expected 2 destination errors, got %d", stats.DestinationErrors)
	}
}

func TestSinkFiltersDebugAtEnqueue(t *testing.T) {
	dest := newMemDest("mem")
	sink := NewSink(SinkOptions{DebugLevel: 3, Destinations: []Destination{dest}})
	defer sink.Close(time.Second)

	sink.Debug("too chatty", WithDebugLevel(1))
	sink.Debug("default verbosity")
	sink.Debug("important", WithDebugLevel(5))
	sink.SetDebugLevel(6)
	sink.Debug("now filtered", WithDebugLevel(5))
	sink.Log("logs are never filtered")

	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got := dest.texts()
	want := []string{"default verbosity", "important", "logs are never filtered"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected records: got %v want %v", got, want)
	}
	stats := sink.Stats()
	if stats.Filtered != 2 {
		t.Fatalf("expected 2 filtered records, got %d", stats.Filtered)
	}
	if stats.Enqueued != 3 {
		t.Fatalf("filtered records must not consume sequence numbers, got %d", stats.Enqueued)
	}
}

func TestSinkCloseDrainsAndClosesDestinations(t *testing.T) {
	dest := newMemDest("mem")
	sink := NewSink(SinkOptions{Destinations: []Destination{dest}})

	for i := 0; i < 100; i++ {
		sink.Log(fmt.Sprintf("line %d", i))
	}
	if err := sink.Close(5 * time.Second); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(dest.snapshot()); got != 100 {
		t.Fatalf("expected 100 drained records, got %d", got)
	}
	if !dest.closed {
		t.Fatal("expected destination to be closed")
	}

	sink.Log("after close")
	if got := len(dest.snapshot()); got != 100 {
		t.Fatalf("records after close must be dropped, got %d", got)
	}
	if err := sink.Close(time.Second); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	select {
	case <-sink.Done():
	default:
		t.Fatal("expected consumer to be stopped")
	}
}

func TestSinkCloseTimesOutOnStuckDestination(t *testing.T) {
	stuck := newMemDest("stuck")
	stuck.gate = make(chan struct{})
	sink := NewSink(SinkOptions{Destinations: []Destination{stuck}})
	sink.Log("never finishes")

	if err := sink.Close(20 * time.Millisecond); err == nil {
		t.Fatal("expected drain timeout")
	}
	stuck.mu.Lock()
	closed := stuck.closed
	stuck.mu.Unlock()
	if !closed {
		t.Fatal("destinations should be closed even when the drain times out")
	}
	close(stuck.gate)
	<-sink.Done()
}

func TestSinkFlushHonoursContext(t *testing.T) {
	stuck := newMemDest("stuck")
	stuck.gate = make(chan struct{})
	sink := NewSink(SinkOptions{Destinations: []Destination{stuck}})
	defer func() {
		close(stuck.gate)
		sink.Close(time.Second)
	}()

	sink.Log("blocked")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sink.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSinkDetachByName(t *testing.T) {
	a := newMemDest("relay")
	b := newMemDest("console")
	sink := NewSink(SinkOptions{Destinations: []Destination{a, b}})
	defer sink.Close(time.Second)

	sink.Detach("relay")
	if names := sink.Destinations(); len(names) != 1 || names[0] != "console" {
		t.Fatalf("unexpected destinations after detach: %v", names)
	}
	sink.Log("hello")
	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(a.snapshot()) != 0 {
		t.Fatal("detached destination received a record")
	}
	if len(b.snapshot()) != 1 {
		t.Fatal("remaining destination missed a record")
	}
}

func TestConsoleDestinationRoutesBySeverity(t *testing.T) {
	var stdout, stderr lockedBuffer
	console := NewConsoleDestination(&stdout, &stderr, WithColor(false))
	sink := NewSink(SinkOptions{Destinations: []Destination{console}, Clock: fixedClock()})

	sink.Success("posted cat.jpg")
	sink.Warn("slow upload", WithPrefix("publish"))
	sink.Error("login failed")
	sink.Log("no newline", WithEnd(""))
	if err := sink.Close(time.Second); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "PASS  posted cat.jpg\n") {
		t.Fatalf("expected PASS line on stdout, got %q", out)
	}
	if !strings.HasSuffix(out, "LOG   no newline") {
		t.Fatalf("expected custom end to be honoured, got %q", out)
	}
	errOut := stderr.String()
	if !strings.Contains(errOut, "WARN  [publish] slow upload") || !strings.Contains(errOut, "ERROR login failed") {
		t.Fatalf("expected warnings and errors on stderr, got %q", errOut)
	}
	if strings.Contains(out+errOut, "\x1b[") {
		t.Fatal("expected no ANSI codes for non-terminal writers")
	}
}
