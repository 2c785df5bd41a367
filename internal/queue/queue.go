package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dropcast/internal/logging"
	"dropcast/internal/publish"
	"dropcast/internal/services"
)

// Option customizes a Queue.
type Option func(*Queue)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithJitter replaces the uniform jitter source.
func WithJitter(jitter func(min, max time.Duration) time.Duration) Option {
	return func(q *Queue) {
		if jitter != nil {
			q.jitter = jitter
		}
	}
}

// WithLogger sets the logger for freeze and protocol events.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// Outcome describes how a post attempt resolved.
type Outcome struct {
	Posted bool
	Kind   publish.FailureKind
	// Fatal means publishing cannot continue without new credentials.
	Fatal     bool
	Discarded bool
	Frozen    bool
	FreezeFor time.Duration
	Failures  int
}

// Queue is the ordered list of items waiting to be posted plus the state of
// the cooldown scheduler.
type Queue struct {
	mu            sync.Mutex
	policy        CooldownPolicy
	items         []Item
	cooldownUntil time.Time
	failures      int
	freeze        *FreezeState
	inflight      bool

	now    func() time.Time
	jitter func(min, max time.Duration) time.Duration
	logger *slog.Logger
}

// New builds an empty queue. The cooldown starts elapsed.
func New(policy CooldownPolicy, opts ...Option) *Queue {
	q := &Queue{
		policy: policy,
		now:    time.Now,
		jitter: UniformJitter,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	q.logger = logging.NewComponentLogger(q.logger, "queue")
	return q
}

// Policy returns the cooldown policy in use.
func (q *Queue) Policy() CooldownPolicy {
	return q.policy
}

// Add appends item to the tail.
func (q *Queue) Add(item Item) error {
	if strings.TrimSpace(item.Path) == "" {
		return ErrEmptyPath
	}
	if !item.Kind.Valid() {
		return fmt.Errorf("add %s: invalid kind %q", item.Path, item.Kind)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.indexLocked(item.Path) >= 0 {
		return fmt.Errorf("add %s: %w", item.Path, ErrDuplicate)
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = q.now()
	}
	q.items = append(q.items, item)
	return nil
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PeekNext returns the head without removing it.
func (q *Queue) PeekNext() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Items returns a copy of the queue in order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Item(nil), q.items...)
}

// Contains reports whether path is queued.
func (q *Queue) Contains(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexLocked(path) >= 0
}

// Discard removes item from any position. It is the only way besides a
// successful post for an item to leave the queue.
func (q *Queue) Discard(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.removeLocked(item.Path) {
		return fmt.Errorf("discard %s: %w", item.Path, ErrNotQueued)
	}
	return nil
}

// Post sends item, which must be the current head, through poster exactly
// once. The queue lock is not held during the call. On success the head is
// removed after checking it is still item; ErrHeadChanged otherwise. On
// failure the returned error is the poster's and the outcome says how the
// scheduler reacted: rate limits freeze the queue, authentication failures
// are fatal, rejected media is discarded and anything else counts as a
// consecutive failure.
func (q *Queue) Post(ctx context.Context, item Item, opts publish.Options, poster publish.Poster) (Outcome, error) {
	if poster == nil {
		return Outcome{}, fmt.Errorf("post %s: no poster configured", item.Path)
	}
	req := publish.Request{Path: item.Path, Kind: item.Kind, Options: opts}
	if id, ok := services.AttemptIDFromContext(ctx); ok {
		req.AttemptID = id
	}

	q.mu.Lock()
	if q.inflight {
		q.mu.Unlock()
		return Outcome{}, ErrPostInFlight
	}
	now := q.now()
	if q.freezeActiveLocked(now) {
		q.mu.Unlock()
		return Outcome{Frozen: true}, ErrFrozen
	}
	if q.cooldownUntil.After(now) {
		q.mu.Unlock()
		return Outcome{}, ErrCoolingDown
	}
	if len(q.items) == 0 || q.items[0].Path != item.Path {
		q.mu.Unlock()
		return Outcome{}, q.headChanged(item, "before post")
	}
	q.inflight = true
	q.mu.Unlock()

	postErr := poster.Post(ctx, req)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight = false

	if postErr == nil {
		if len(q.items) == 0 || q.items[0].Path != item.Path {
			return Outcome{}, q.headChanged(item, "after post")
		}
		q.items[0] = Item{}
		q.items = q.items[1:]
		q.failures = 0
		return Outcome{Posted: true}, nil
	}

	out := Outcome{Kind: publish.Classify(postErr)}
	switch out.Kind {
	case publish.KindRateLimited:
		d, ok := publish.RetryAfter(postErr)
		if !ok {
			d = q.policy.FreezeDefault
		}
		q.freezeLocked("rate limited by "+poster.Name(), d)
		out.Frozen = true
		out.FreezeFor = d
	case publish.KindAuth:
		out.Fatal = true
	case publish.KindInvalidMedia:
		out.Discarded = q.removeLocked(item.Path)
	default:
		q.failures++
	}
	out.Failures = q.failures
	return out, postErr
}

// Cooldown is the time left before the next post may start. It is at least
// the remaining freeze.
func (q *Queue) Cooldown() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cooldownLocked(q.now())
}

// CooldownSeconds floors Cooldown to whole seconds.
func (q *Queue) CooldownSeconds() int64 {
	return int64(q.Cooldown() / time.Second)
}

// GenerateNewCooldown computes the next window and returns its length. The
// deadline never moves backwards: a shorter window than the one in force
// leaves the current deadline in place.
func (q *Queue) GenerateNewCooldown(nothingToPost bool) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	var jitter time.Duration
	if !nothingToPost {
		jitter = q.jitter(q.policy.JitterMin, q.policy.JitterMax)
	}
	interval := q.policy.interval(nothingToPost, q.failures, jitter)
	if deadline := q.now().Add(interval); deadline.After(q.cooldownUntil) {
		q.cooldownUntil = deadline
	}
	return interval
}

// Freeze blocks posting for d (FreezeDefault when d is not positive). An
// active freeze with a later deadline is kept.
func (q *Queue) Freeze(reason string, d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.freezeLocked(reason, d)
}

// Frozen returns the active freeze. An expired freeze is cleared.
func (q *Queue) Frozen() (FreezeState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.freezeActiveLocked(q.now()) {
		return FreezeState{}, false
	}
	return *q.freeze, true
}

// Failures returns the consecutive failure count.
func (q *Queue) Failures() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failures
}

// Snapshot returns the state shown by status surfaces.
func (q *Queue) Snapshot() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	st := Status{
		Length:        len(q.items),
		Cooldown:      q.cooldownLocked(now),
		CooldownUntil: q.cooldownUntil,
		Failures:      q.failures,
		InFlight:      q.inflight,
	}
	if q.freezeActiveLocked(now) {
		freeze := *q.freeze
		st.Freeze = &freeze
	}
	return st
}

func (q *Queue) cooldownLocked(now time.Time) time.Duration {
	remaining := q.cooldownUntil.Sub(now)
	if q.freezeActiveLocked(now) {
		if f := q.freeze.Remaining(now); f > remaining {
			remaining = f
		}
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (q *Queue) freezeActiveLocked(now time.Time) bool {
	if q.freeze == nil {
		return false
	}
	if !q.freeze.Until.After(now) {
		q.logger.Info("freeze lifted", logging.String("reason", q.freeze.Reason))
		q.freeze = nil
		return false
	}
	return true
}

func (q *Queue) freezeLocked(reason string, d time.Duration) {
	if d <= 0 {
		d = q.policy.FreezeDefault
	}
	now := q.now()
	until := now.Add(d)
	if q.freezeActiveLocked(now) && q.freeze.Until.After(until) {
		until = q.freeze.Until
	}
	q.freeze = &FreezeState{Reason: reason, Until: until}
	logging.WarnWithContext(q.logger, "publishing frozen", "queue_frozen",
		logging.String("reason", reason),
		logging.Duration("duration", until.Sub(now)),
		logging.String(logging.FieldErrorHint, "the platform asked us to back off; posting resumes automatically"),
		logging.String(logging.FieldImpact, "no posts until the freeze ends"),
	)
}

func (q *Queue) headChanged(item Item, when string) error {
	head := ""
	if len(q.items) > 0 {
		head = q.items[0].Path
	}
	logging.ErrorWithContext(q.logger, "queue head changed", "queue_protocol_violation",
		logging.String(logging.FieldItemPath, item.Path),
		logging.String("head", head),
		logging.String("when", when),
		logging.String(logging.FieldErrorHint, "only the publish lane may remove the head; this is a bug"),
	)
	return fmt.Errorf("%s: expected %s, head is %q: %w", when, item.Path, head, ErrHeadChanged)
}

func (q *Queue) indexLocked(path string) int {
	for i, it := range q.items {
		if it.Path == path {
			return i
		}
	}
	return -1
}

func (q *Queue) removeLocked(path string) bool {
	idx := q.indexLocked(path)
	if idx < 0 {
		return false
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	return true
}
