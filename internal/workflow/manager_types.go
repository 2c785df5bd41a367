package workflow

import (
	"context"
	"log/slog"
	"time"

	"dropcast/internal/media"
	"dropcast/internal/publish"
)

// Classifier sorts one dropped file.
type Classifier interface {
	Classify(ctx context.Context, path string) (media.Result, error)
}

// OptionsResolver supplies and retires per-item post options.
type OptionsResolver interface {
	Resolve(path string) (publish.Options, error)
	Consume(path string) (bool, error)
}

type laneKind string

const (
	laneIngest  laneKind = "ingest"
	lanePublish laneKind = "publish"
)

// publishState names the steps of the publish lane. It is only used for
// status reporting and logging.
type publishState string

const (
	stateIdle          publishState = "idle"
	stateCheckCooldown publishState = "check_cooldown"
	stateDequeue       publishState = "dequeue_candidate"
	stateAttempt       publishState = "attempt_post"
	stateStopped       publishState = "stopped"
)

type laneState struct {
	kind   laneKind
	logger *slog.Logger
	run    func(ctx context.Context, lane *laneState)

	stopped   bool
	stopCause string
	lastRun   time.Time
}
