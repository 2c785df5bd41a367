package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dropcast/internal/config"
	"dropcast/internal/fslock"
	"dropcast/internal/history"
	"dropcast/internal/logging"
	"dropcast/internal/notifications"
	"dropcast/internal/publish"
	"dropcast/internal/queue"
)

// Dependencies are the collaborators shared by both lanes. Queue, Classifier,
// Lock and Poster are required; a nil Options resolver posts every item with
// empty options, a nil History skips attempt recording and a nil Notifier
// disables notifications.
type Dependencies struct {
	Queue      *queue.Queue
	Classifier Classifier
	Options    OptionsResolver
	History    *history.Store
	Notifier   notifications.Service
	Lock       *fslock.Lock
	Poster     publish.Poster
}

// Manager coordinates the ingestion and publish lanes.
type Manager struct {
	cfg        *config.Config
	queue      *queue.Queue
	classifier Classifier
	options    OptionsResolver
	history    *history.Store
	notifier   notifications.Service
	lock       *fslock.Lock
	poster     publish.Poster
	logger     *slog.Logger

	scanInterval time.Duration
	postTimeout  time.Duration
	loginRetry   time.Duration
	now          func() time.Time
	newAttemptID func() string

	lanes     map[laneKind]*laneState
	laneOrder []laneKind

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	state    publishState
	loggedIn bool

	lastPosted   *queue.Item
	lastPostedAt time.Time
	counters     Counters
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithIntervals overrides the scan and login retry intervals taken from the
// configuration. Non-positive values keep the configured ones.
func WithIntervals(scan, loginRetry time.Duration) ManagerOption {
	return func(m *Manager) {
		if scan > 0 {
			m.scanInterval = scan
		}
		if loginRetry > 0 {
			m.loginRetry = loginRetry
		}
	}
}

// WithPostTimeout overrides publish.post_timeout.
func WithPostTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.postTimeout = d
		}
	}
}

// WithClock replaces time.Now for history timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithAttemptIDs replaces the attempt identifier generator.
func WithAttemptIDs(next func() string) ManagerOption {
	return func(m *Manager) {
		if next != nil {
			m.newAttemptID = next
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config is required")
	}
	switch {
	case deps.Queue == nil:
		return nil, errors.New("workflow: queue is required")
	case deps.Classifier == nil:
		return nil, errors.New("workflow: classifier is required")
	case deps.Lock == nil:
		return nil, errors.New("workflow: filesystem lock is required")
	case deps.Poster == nil:
		return nil, errors.New("workflow: poster is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	m := &Manager{
		cfg:          cfg,
		queue:        deps.Queue,
		classifier:   deps.Classifier,
		options:      deps.Options,
		history:      deps.History,
		notifier:     deps.Notifier,
		lock:         deps.Lock,
		poster:       deps.Poster,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		scanInterval: cfg.ScanInterval(),
		postTimeout:  cfg.PostTimeout(),
		loginRetry:   time.Duration(cfg.Publish.LoginRetryWait) * time.Second,
		now:          time.Now,
		newAttemptID: uuid.NewString,
		state:        stateIdle,
		lanes:        make(map[laneKind]*laneState),
	}
	if m.loginRetry <= 0 {
		m.loginRetry = time.Minute
	}
	for _, opt := range opts {
		opt(m)
	}
	m.registerLane(laneIngest, m.runIngestLane)
	m.registerLane(lanePublish, m.runPublishLane)
	return m, nil
}

func (m *Manager) registerLane(kind laneKind, run func(context.Context, *laneState)) {
	m.lanes[kind] = &laneState{kind: kind, run: run}
	m.laneOrder = append(m.laneOrder, kind)
}

// Queue exposes the shared publish queue.
func (m *Manager) Queue() *queue.Queue {
	return m.queue
}

// PostTimeout is the bound applied to a single post attempt.
func (m *Manager) PostTimeout() time.Duration {
	return m.postTimeout
}
