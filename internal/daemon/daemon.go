package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dropcast/internal/config"
	"dropcast/internal/deps"
	"dropcast/internal/history"
	"dropcast/internal/logging"
	"dropcast/internal/preflight"
	"dropcast/internal/workflow"
)

// LockFileName is the single-instance lock inside the log directory.
const LockFileName = "dropcast.lock"

// Options carries the collaborators the daemon serves over the API. Only
// Workflow is required.
type Options struct {
	Workflow *workflow.Manager
	History  *history.Store
	Sink     *logging.Sink
	Hub      *logging.StreamHub
	Archive  *logging.EventArchive
	// Relay serves /ws/logs when set.
	Relay   http.Handler
	LogPath string
	// Preflight replaces preflight.RunAll, mainly for tests.
	Preflight func(context.Context, *config.Config) []preflight.Result
	// Dependencies replaces preflight.CheckSystemDeps.
	Dependencies func(*config.Config) []deps.Status
}

// Daemon coordinates the background workers and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow *workflow.Manager
	opts     Options

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	LockFilePath string
	HistoryPath  string
	LogPath      string
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
	Sink         *logging.SinkStats
	Destinations []string
}

// New constructs a daemon.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || opts.Workflow == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	if opts.Preflight == nil {
		opts.Preflight = preflight.RunAll
	}
	if opts.Dependencies == nil {
		opts.Dependencies = preflight.CheckSystemDeps
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		workflow: opts.Workflow,
		opts:     opts,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, runs preflight and discovery, then
// launches the workers and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dropcast daemon instance is already running")
	}

	if err := d.startLocked(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	return nil
}

func (d *Daemon) startLocked(ctx context.Context) error {
	if failed := preflight.Failed(d.opts.Preflight(ctx, d.cfg)); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			logging.ErrorWithContext(d.logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "run dropcast config validate for details"),
			)
			names = append(names, r.Name)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
	}
	if missing := deps.MissingRequired(d.opts.Dependencies(d.cfg)); len(missing) > 0 {
		for _, dep := range missing {
			logging.WarnWithContext(d.logger, "external tool unavailable", "dependency_missing",
				logging.String("dependency", dep.Name),
				logging.String("detail", dep.Detail),
				logging.String(logging.FieldImpact, "matching files fail conversion and are discarded"),
				logging.String(logging.FieldErrorHint, "install the tool or set its path under [convert]"),
			)
		}
	}

	if _, err := d.workflow.Discover(ctx); err != nil {
		return fmt.Errorf("discover sorted files: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.workflow.Stop(d.workflow.PostTimeout())
		return err
	}

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	logging.Success(d.logger, "dropcast daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("queue_length", d.QueueLength()),
		logging.String("provider", d.cfg.Publish.Provider),
	)
	return nil
}

// RequestShutdown stops the API and the workers, releases the instance lock
// and waits for the log sink to deliver what was already emitted. timeout
// bounds each of the worker stop and the sink drain.
func (d *Daemon) RequestShutdown(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return nil
	}
	d.logger.Info("dropcast daemon stopping", logging.String(logging.FieldEventType, "daemon_stopping"))

	var errs []error
	d.api.stop()
	if err := d.workflow.Stop(timeout); err != nil {
		errs = append(errs, err)
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dropcast daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))

	if d.opts.Sink != nil {
		flushCtx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			flushCtx, cancel = context.WithTimeout(flushCtx, timeout)
			defer cancel()
		}
		if err := d.opts.Sink.Flush(flushCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain log sink: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Running reports whether the daemon was started and not shut down.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// QueueLength returns the number of items waiting to be posted.
func (d *Daemon) QueueLength() int {
	return d.workflow.Queue().Len()
}

// CooldownRemaining returns the wait before the next post may start.
func (d *Daemon) CooldownRemaining() time.Duration {
	return d.workflow.Queue().Cooldown()
}

// LockPath returns the instance lock location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Addr returns the bound API address, or "" when the API is disabled or not
// started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    startedAt,
		LockFilePath: d.lockPath,
		LogPath:      d.opts.LogPath,
		Workflow:     d.workflow.Status(),
		Dependencies: d.opts.Dependencies(d.cfg),
	}
	if d.opts.History != nil {
		status.HistoryPath = d.opts.History.Path()
	}
	if d.opts.Sink != nil {
		stats := d.opts.Sink.Stats()
		status.Sink = &stats
		status.Destinations = d.opts.Sink.Destinations()
	}
	return status
}
