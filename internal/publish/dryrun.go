package publish

import (
	"context"
	"log/slog"
	"sync"

	"dropcast/internal/logging"
)

// DryRun logs each request and reports success without contacting anything.
type DryRun struct {
	logger *slog.Logger

	mu    sync.Mutex
	posts []Request
}

// NewDryRun constructs the dry-run poster.
func NewDryRun(logger *slog.Logger) *DryRun {
	return &DryRun{logger: logging.NewComponentLogger(logger, "publish")}
}

func (d *DryRun) Name() string { return "dryrun" }

// Login always succeeds.
func (d *DryRun) Login(context.Context) error { return nil }

func (d *DryRun) Post(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return &InvalidMediaError{Provider: d.Name(), Path: req.Path, Err: err}
	}
	d.mu.Lock()
	d.posts = append(d.posts, req)
	d.mu.Unlock()
	d.logger.Info("dry run post",
		logging.String(logging.FieldItemPath, req.Path),
		logging.String("kind", string(req.Kind)),
		logging.String("caption", req.Options.Caption),
		logging.String(logging.FieldAttemptID, req.AttemptID),
	)
	return nil
}

// Posts returns the requests seen so far.
func (d *DryRun) Posts() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.posts...)
}
