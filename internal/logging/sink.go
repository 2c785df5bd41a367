package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSinkClosed is returned by operations attempted after Close.
var ErrSinkClosed = errors.New("log sink closed")

// Destination receives records from the sink consumer. The sink never calls
// Write concurrently, and never while a prompt is being shown.
type Destination interface {
	Name() string
	Write(Record) error
}

// SinkOptions configures a Sink.
type SinkOptions struct {
	// DebugLevel suppresses debug records whose level is below it.
	DebugLevel   int
	Destinations []Destination
	// Input and PromptOutput back Ask/Confirm. They default to stdin/stdout.
	Input        io.Reader
	PromptOutput io.Writer
	Clock        func() time.Time
}

// SinkStats summarizes sink activity for status surfaces.
type SinkStats struct {
	Enqueued          uint64 `json:"enqueued"`
	Delivered         uint64 `json:"delivered"`
	Pending           int    `json:"pending"`
	Filtered          uint64 `json:"filtered"`
	DestinationErrors uint64 `json:"destination_errors"`
	Destinations      int    `json:"destinations"`
}

// Sink serializes records from any number of producers onto its attached
// destinations. Producers only append under a short lock; a single consumer
// goroutine performs all destination I/O in enqueue order.
type Sink struct {
	mu         sync.Mutex
	cond       *sync.Cond
	pending    []Record
	lastSeq    uint64
	delivered  uint64
	closed     bool
	attached   []*attachment
	debugLevel int
	clock      func() time.Time

	// ioMu is held by the consumer while writing a record and by prompts
	// while they own the terminal.
	ioMu      sync.Mutex
	input     *bufio.Reader
	promptOut io.Writer

	filtered  atomic.Uint64
	destErrs  atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

type attachment struct {
	dest     Destination
	after    uint64
	detached atomic.Bool
}

// NewSink constructs a sink and starts its consumer.
func NewSink(opts SinkOptions) *Sink {
	s := &Sink{
		debugLevel: opts.DebugLevel,
		clock:      opts.Clock,
		promptOut:  opts.PromptOutput,
		done:       make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	if s.clock == nil {
		s.clock = time.Now
	}
	input := opts.Input
	if input == nil {
		input = os.Stdin
	}
	s.input = bufio.NewReader(input)
	if s.promptOut == nil {
		s.promptOut = os.Stdout
	}
	for _, dest := range opts.Destinations {
		if dest != nil {
			s.attached = append(s.attached, &attachment{dest: dest})
		}
	}
	go s.run()
	return s
}

// Emit enqueues a record and returns immediately.
func (s *Sink) Emit(severity Severity, text string, opts ...EmitOption) {
	if s == nil {
		return
	}
	rec := Record{
		Severity:   severity,
		Text:       text,
		End:        "\n",
		DebugLevel: DefaultDebugLevel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&rec)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if rec.Severity == SeverityDebug && rec.DebugLevel < s.debugLevel {
		s.mu.Unlock()
		s.filtered.Add(1)
		return
	}
	s.lastSeq++
	rec.Seq = s.lastSeq
	if rec.Time.IsZero() {
		rec.Time = s.clock()
	}
	s.pending = append(s.pending, rec)
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Sink) Debug(text string, opts ...EmitOption) { s.Emit(SeverityDebug, text, opts...) }

func (s *Sink) Log(text string, opts ...EmitOption) { s.Emit(SeverityLog, text, opts...) }

func (s *Sink) Success(text string, opts ...EmitOption) { s.Emit(SeveritySuccess, text, opts...) }

func (s *Sink) Warn(text string, opts ...EmitOption) { s.Emit(SeverityWarn, text, opts...) }

func (s *Sink) Error(text string, opts ...EmitOption) { s.Emit(SeverityError, text, opts...) }

// SetDebugLevel changes the debug threshold for records enqueued afterwards.
func (s *Sink) SetDebugLevel(level int) {
	s.mu.Lock()
	s.debugLevel = level
	s.mu.Unlock()
}

// DebugLevel reports the current debug threshold.
func (s *Sink) DebugLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugLevel
}

// Attach adds a destination. It receives only records enqueued after the
// call; nothing already queued or delivered is replayed. The returned func
// detaches it.
func (s *Sink) Attach(dest Destination) func() {
	if s == nil || dest == nil {
		return func() {}
	}
	s.mu.Lock()
	a := &attachment{dest: dest, after: s.lastSeq}
	s.attached = append(s.attached, a)
	s.mu.Unlock()
	return func() { s.detach(a) }
}

// Detach removes every attached destination with the given name.
func (s *Sink) Detach(name string) {
	s.mu.Lock()
	var targets []*attachment
	for _, a := range s.attached {
		if a.dest.Name() == name {
			targets = append(targets, a)
		}
	}
	s.mu.Unlock()
	for _, a := range targets {
		s.detach(a)
	}
}

func (s *Sink) detach(target *attachment) {
	target.detached.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.attached {
		if a == target {
			s.attached = append(s.attached[:i:i], s.attached[i+1:]...)
			return
		}
	}
}

// Destinations lists the names of the attached destinations.
func (s *Sink) Destinations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.attached))
	for _, a := range s.attached {
		names = append(names, a.dest.Name())
	}
	return names
}

// Stats returns a snapshot of sink counters.
func (s *Sink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SinkStats{
		Enqueued:          s.lastSeq,
		Delivered:         s.delivered,
		Pending:           len(s.pending),
		Filtered:          s.filtered.Load(),
		DestinationErrors: s.destErrs.Load(),
		Destinations:      len(s.attached),
	}
}

// Flush blocks until every record enqueued before the call was delivered, the
// sink stopped, or ctx ended.
func (s *Sink) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-stopWatch:
			}
		}()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.lastSeq
	for s.delivered < target && !s.stoppedLocked() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	return ctx.Err()
}

// Close stops accepting records, drains what is queued and closes every
// destination that implements io.Closer. It waits at most timeout for the
// drain; a non-positive timeout waits indefinitely. Destinations are closed
// even when the drain times out.
func (s *Sink) Close(timeout time.Duration) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	var errs []error
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			errs = append(errs, fmt.Errorf("log sink drain exceeded %s", timeout))
		}
	} else {
		<-s.done
	}

	s.closeOnce.Do(func() {
		s.mu.Lock()
		attached := append([]*attachment(nil), s.attached...)
		s.mu.Unlock()
		for _, a := range attached {
			if closer, ok := a.dest.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					errs = append(errs, fmt.Errorf("close %s: %w", a.dest.Name(), err))
				}
			}
		}
	})
	return errors.Join(errs...)
}

// Done is closed once the consumer has drained and exited.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

func (s *Sink) stoppedLocked() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Sink) run() {
	defer func() {
		s.mu.Lock()
		close(s.done)
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		rec := s.pending[0]
		s.pending[0] = Record{}
		s.pending = s.pending[1:]
		targets := make([]*attachment, 0, len(s.attached))
		for _, a := range s.attached {
			if rec.Seq > a.after {
				targets = append(targets, a)
			}
		}
		s.mu.Unlock()

		s.ioMu.Lock()
		s.deliver(rec, targets)
		s.ioMu.Unlock()

		s.mu.Lock()
		s.delivered = rec.Seq
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *Sink) deliver(rec Record, targets []*attachment) {
	type failure struct {
		name string
		err  error
	}
	var failures []failure
	healthy := make([]*attachment, 0, len(targets))
	for _, a := range targets {
		if a.detached.Load() {
			continue
		}
		if err := a.dest.Write(rec); err != nil {
			failures = append(failures, failure{name: a.dest.Name(), err: err})
			continue
		}
		healthy = append(healthy, a)
	}
	if len(failures) == 0 {
		return
	}
	s.destErrs.Add(uint64(len(failures)))
	for _, f := range failures {
		report := Record{
			Seq:      rec.Seq,
			Time:     s.clock(),
			Severity: SeverityError,
			Prefix:   "logging",
			Text:     fmt.Sprintf("log destination %s failed: %v", f.name, f.err),
			Fields:   []Field{{Key: FieldEventType, Value: "log_destination_failed"}, {Key: "destination", Value: f.name}},
			End:      "\n",
		}
		for _, a := range healthy {
			if a.detached.Load() {
				continue
			}
			_ = a.dest.Write(report)
		}
	}
}
