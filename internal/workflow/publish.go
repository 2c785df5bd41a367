package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dropcast/internal/fileutil"
	"dropcast/internal/history"
	"dropcast/internal/logging"
	"dropcast/internal/publish"
	"dropcast/internal/queue"
	"dropcast/internal/services"
)

// ErrLaneStopped wraps the cause that halted the publish lane.
var ErrLaneStopped = errors.New("publish lane stopped")

// PublishResult describes one publish cycle.
type PublishResult struct {
	Empty     bool          `json:"empty,omitempty"`
	Item      *queue.Item   `json:"item,omitempty"`
	AttemptID string        `json:"attempt_id,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Cooldown  time.Duration `json:"cooldown"`
}

func (m *Manager) runPublishLane(ctx context.Context, lane *laneState) {
	for {
		if ctx.Err() != nil {
			return
		}
		m.setState(stateIdle)

		if !m.isLoggedIn() {
			if err := m.Login(ctx); err != nil {
				if errors.Is(err, ErrLaneStopped) {
					m.stopLane(lane, err)
					return
				}
				if !sleep(ctx, m.loginRetry) {
					return
				}
				continue
			}
		}

		m.setState(stateCheckCooldown)
		if wait := m.queue.Cooldown(); wait > 0 {
			logging.DebugAt(lane.logger, 3, "waiting for cooldown", logging.Duration("remaining", wait))
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		_, err := m.PublishNext(ctx)
		m.markLaneRun(lane)
		if errors.Is(err, ErrLaneStopped) {
			m.stopLane(lane, err)
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			m.setLastError(err)
		}
	}
}

// Login authenticates the poster once. Authentication failures are final for
// this run and wrap ErrLaneStopped; anything else can be retried.
func (m *Manager) Login(ctx context.Context) error {
	auth, ok := m.poster.(publish.Authenticator)
	if !ok {
		m.setLoggedIn(true)
		return nil
	}
	logger := m.logger.With(logging.String("provider", m.poster.Name()))
	err := auth.Login(ctx)
	if err == nil {
		m.setLoggedIn(true)
		logging.Success(logger, "logged in to remote account",
			logging.String(logging.FieldEventType, "login_succeeded"),
		)
		return nil
	}
	if publish.Classify(err) == publish.KindAuth {
		if notifyErr := m.notifier.NotifyAuthFailed(ctx, m.poster.Name(), err); notifyErr != nil {
			logging.DebugAt(logger, 2, "auth notification failed", logging.Error(notifyErr))
		}
		return fmt.Errorf("%w: login rejected: %w", ErrLaneStopped, err)
	}
	logging.WarnWithContext(logger, "login failed; will retry", "login_failed",
		logging.Error(err),
		logging.Duration("retry_in", m.loginRetry),
		logging.String(logging.FieldErrorHint, "check network access to the remote server"),
		logging.String(logging.FieldImpact, "posting paused until login succeeds"),
	)
	return err
}

// PublishNext peeks at the head of the queue and attempts one post. The
// caller is expected to have waited out the cooldown. An empty queue schedules the
// short empty interval. Errors wrapping ErrLaneStopped mean the lane must
// not continue.
func (m *Manager) PublishNext(ctx context.Context) (PublishResult, error) {
	m.setState(stateDequeue)
	logger := m.logger.With(logging.String(logging.FieldLane, string(lanePublish)))

	item, ok := m.queue.PeekNext()
	if !ok {
		wait := m.queue.GenerateNewCooldown(true)
		logging.DebugAt(logger, 3, "nothing to post", logging.Duration("next_check", wait))
		return PublishResult{Empty: true, Cooldown: wait}, nil
	}
	logger = logger.With(logging.String(logging.FieldItemPath, item.Path))

	opts, err := m.resolveOptions(logger, item)
	if err != nil {
		wait := m.queue.GenerateNewCooldown(false)
		m.notifyError(ctx, err, "post options")
		return PublishResult{Item: &item, Cooldown: wait}, err
	}

	m.setState(stateAttempt)
	attemptID := m.newAttemptID()
	postCtx := services.WithAttemptID(services.WithItemPath(context.WithoutCancel(ctx), item.Path), attemptID)
	postCtx, cancel := context.WithTimeout(postCtx, m.postTimeout)
	started := m.now()
	out, postErr := m.queue.Post(postCtx, item, opts, m.poster)
	cancel()
	finished := m.now()
	logger = logger.With(logging.String(logging.FieldAttemptID, attemptID))

	result := PublishResult{Item: &item, AttemptID: attemptID}
	attempt := history.Attempt{
		AttemptID:  attemptID,
		Path:       item.Path,
		Kind:       string(item.Kind),
		Caption:    opts.Caption,
		Provider:   m.poster.Name(),
		StartedAt:  started,
		FinishedAt: finished,
	}

	switch {
	case errors.Is(postErr, queue.ErrHeadChanged), errors.Is(postErr, queue.ErrPostInFlight):
		return result, fmt.Errorf("%w: %w", ErrLaneStopped, postErr)
	case errors.Is(postErr, queue.ErrCoolingDown), errors.Is(postErr, queue.ErrFrozen):
		result.Cooldown = m.queue.Cooldown()
		return result, nil
	case out.Posted:
		result.Outcome = history.OutcomePosted
		m.onPosted(ctx, logger, item, finished)
	case out.Fatal:
		result.Outcome = history.OutcomeAuth
		attempt.Outcome, attempt.Detail = result.Outcome, postErr.Error()
		m.record(logger, attempt)
		m.setLoggedIn(false)
		if err := m.notifier.NotifyAuthFailed(ctx, m.poster.Name(), postErr); err != nil {
			logging.DebugAt(logger, 2, "auth notification failed", logging.Error(err))
		}
		return result, fmt.Errorf("%w: %w", ErrLaneStopped, postErr)
	case out.Frozen:
		result.Outcome = history.OutcomeFrozen
		logging.WarnWithContext(logger, "remote rate limit hit", "post_rate_limited",
			logging.Error(postErr),
			logging.Duration("freeze", out.FreezeFor),
			logging.String(logging.FieldImpact, "posting paused until the freeze lifts"),
		)
		if err := m.notifier.NotifyFrozen(ctx, postErr.Error(), out.FreezeFor); err != nil {
			logging.DebugAt(logger, 2, "freeze notification failed", logging.Error(err))
		}
	case out.Discarded:
		result.Outcome = history.OutcomeDiscarded
		logging.ErrorWithContext(logger, "remote rejected media", "post_media_rejected",
			logging.Error(postErr),
			logging.String(logging.FieldErrorHint, "inspect the file in the discard directory"),
			logging.String(logging.FieldImpact, "item removed from the queue"),
		)
		m.consumeOptions(logger, item)
		if err := m.withFSLock(ctx, func() error {
			if _, err := os.Lstat(item.Path); err == nil {
				m.discard(logger, item.Path)
			}
			return nil
		}); err != nil {
			logging.ErrorWithContext(logger, "could not discard rejected file", "discard_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "file stays in sorted storage and is queued again on the next start"),
			)
		}
		m.notifyError(ctx, postErr, "post rejected")
	default:
		result.Outcome = history.OutcomeFailed
		logging.WarnWithContext(logger, "post failed; will retry", "post_failed",
			logging.Error(postErr),
			logging.Int("consecutive_failures", out.Failures),
			logging.String(logging.FieldErrorHint, "the item stays at the head of the queue"),
			logging.String(logging.FieldImpact, "next attempt delayed by backoff"),
		)
	}

	attempt.Outcome = result.Outcome
	if postErr != nil {
		attempt.Detail = postErr.Error()
	}
	m.record(logger, attempt)
	result.Cooldown = m.queue.GenerateNewCooldown(false)
	logging.DebugAt(logger, 2, "cooldown scheduled", logging.Duration("cooldown", result.Cooldown))
	return result, postErr
}

func (m *Manager) onPosted(ctx context.Context, logger *slog.Logger, item queue.Item, at time.Time) {
	m.mu.Lock()
	posted := item
	m.lastPosted = &posted
	m.lastPostedAt = at
	m.counters.Posted++
	m.mu.Unlock()

	logging.Success(logger, "media posted",
		logging.String(logging.FieldEventType, "post_succeeded"),
		logging.String("kind", string(item.Kind)),
		logging.String("provider", m.poster.Name()),
		logging.Int("queue_length", m.queue.Len()),
	)
	m.consumeOptions(logger, item)
	m.retirePosted(ctx, logger, item.Path)
	if err := m.notifier.NotifyPosted(ctx, item.Path, string(item.Kind)); err != nil {
		logging.DebugAt(logger, 2, "post notification failed", logging.Error(err))
	}
}

// retirePosted takes a posted file out of sorted storage so discovery never
// queues it again. With paths.posted_dir set the file is moved there;
// otherwise it is deleted.
func (m *Manager) retirePosted(ctx context.Context, logger *slog.Logger, path string) {
	err := m.withFSLock(ctx, func() error {
		var err error
		if dir := m.cfg.Paths.PostedDir; dir != "" {
			base := filepath.Base(path)
			var dst string
			if dst, err = fileutil.UniquePath(dir, fileutil.Stem(base), filepath.Ext(base)); err == nil {
				err = fileutil.MoveFile(path, dst)
			}
		} else {
			err = os.Remove(path)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	})
	if err != nil {
		logging.ErrorWithContext(logger, "could not remove posted file from sorted storage", "posted_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete or move the file by hand"),
			logging.String(logging.FieldImpact, "file is posted again after the next restart"),
		)
	}
}

// withFSLock runs fn under the filesystem lock. The wait ignores ctx
// cancellation, since it follows a post that has already resolved, but is
// bounded by the post timeout.
func (m *Manager) withFSLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.postTimeout)
	defer cancel()
	release, err := m.lock.Acquire(lockCtx)
	if err != nil {
		return fmt.Errorf("acquire filesystem lock: %w", err)
	}
	defer release()
	return fn()
}

// resolveOptions returns the options for item. An options line that cannot
// be parsed is skipped with a warning; an unreadable options file fails the
// cycle so the item is retried with its caption later.
func (m *Manager) resolveOptions(logger *slog.Logger, item queue.Item) (publish.Options, error) {
	if m.options == nil {
		return publish.Options{Caption: item.Caption}, nil
	}
	opts, err := m.options.Resolve(item.Path)
	switch {
	case err == nil:
		if opts.Caption == "" {
			opts.Caption = item.Caption
		}
		return opts, nil
	case errors.Is(err, services.ErrValidation):
		logging.WarnWithContext(logger, "post options invalid; posting without them", "post_options_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the line in the options file"),
			logging.String(logging.FieldImpact, "item posted without caption or location"),
		)
		return publish.Options{Caption: item.Caption}, nil
	default:
		logging.ErrorWithContext(logger, "post options unavailable", "post_options_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check captions.options_file permissions"),
			logging.String(logging.FieldImpact, "post delayed until the options file is readable"),
		)
		return publish.Options{}, err
	}
}

func (m *Manager) consumeOptions(logger *slog.Logger, item queue.Item) {
	if m.options == nil {
		return
	}
	if _, err := m.options.Consume(item.Path); err != nil {
		logging.WarnWithContext(logger, "could not remove used options line", "post_options_consume_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the line may be applied to a later file with the same name"),
		)
	}
}

func (m *Manager) record(logger *slog.Logger, attempt history.Attempt) {
	if m.history == nil {
		return
	}
	if _, err := m.history.Record(context.Background(), attempt); err != nil {
		logging.WarnWithContext(logger, "could not record post attempt", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "attempt missing from history"),
		)
	}
}
