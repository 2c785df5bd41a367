package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dropcast/internal/fileutil"
	"dropcast/internal/logging"
	"dropcast/internal/queue"
	"dropcast/internal/services"
)

// IngestReport summarizes one drop folder pass.
type IngestReport struct {
	Scanned   int      `json:"scanned"`
	Accepted  int      `json:"accepted"`
	Rejected  int      `json:"rejected"`
	Failed    int      `json:"failed"`
	Discarded []string `json:"discarded,omitempty"`
	// Interrupted is set when cancellation stopped the pass early.
	Interrupted bool `json:"interrupted,omitempty"`
}

func (m *Manager) runIngestLane(ctx context.Context, lane *laneState) {
	for {
		if ctx.Err() != nil {
			return
		}
		report, err := m.ingest(ctx, lane.logger)
		m.markLaneRun(lane)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.setLastError(err)
			logging.ErrorWithContext(lane.logger, "ingestion pass failed", "ingest_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the drop folder exists and is readable"),
			)
			m.notifyError(ctx, err, "ingestion pass")
		}
		if report.Interrupted || !sleep(ctx, m.scanInterval) {
			return
		}
	}
}

// IngestOnce runs a single pass over the drop folder. It holds the
// filesystem lock for the whole pass.
func (m *Manager) IngestOnce(ctx context.Context) (IngestReport, error) {
	return m.ingest(ctx, m.logger.With(logging.String(logging.FieldLane, string(laneIngest))))
}

func (m *Manager) ingest(ctx context.Context, logger *slog.Logger) (IngestReport, error) {
	var report IngestReport
	if logger == nil {
		logger = m.logger
	}
	dropDir := m.cfg.Paths.DropDir
	if err := ctx.Err(); err != nil {
		return report, err
	}

	release, err := m.lock.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("acquire filesystem lock: %w", err)
	}
	defer release()

	entries, err := os.ReadDir(dropDir)
	if err != nil {
		return report, services.Wrap(services.ErrConfiguration, "ingest", "list drop folder", dropDir, err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		report.Scanned++
		path := filepath.Join(dropDir, entry.Name())
		fileLogger := logger.With(logging.String(logging.FieldItemPath, path))

		res, err := m.classifier.Classify(ctx, path)
		switch {
		case err != nil && ctx.Err() != nil:
			report.Interrupted = true
		case err != nil && errors.Is(err, services.ErrNotFound):
			logging.DebugAt(fileLogger, 2, "file vanished before classification")
		case err != nil:
			report.Failed++
			logging.WarnWithContext(fileLogger, "classification failed", "classify_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the file and the converter output"),
				logging.String(logging.FieldImpact, "file moved to the discard directory"),
			)
			if dst, ok := m.discard(fileLogger, path); ok {
				report.Discarded = append(report.Discarded, dst)
			}
		case !res.Accepted:
			report.Rejected++
			if dst, ok := m.discard(fileLogger, path); ok {
				report.Discarded = append(report.Discarded, dst)
			}
		default:
			m.enqueue(fileLogger, queue.Item{Path: res.NewPath, Kind: res.Kind}, &report)
			// The classifier only warns when it cannot remove the original.
			if _, statErr := os.Lstat(path); statErr == nil {
				if dst, ok := m.discard(fileLogger, path); ok {
					report.Discarded = append(report.Discarded, dst)
				}
			}
		}
		if report.Interrupted {
			break
		}
	}

	m.mu.Lock()
	m.counters.Ingested += report.Accepted
	m.counters.Rejected += report.Rejected + report.Failed
	m.mu.Unlock()

	if report.Scanned > 0 {
		logger.Info("ingestion pass complete",
			logging.String(logging.FieldEventType, "ingest_complete"),
			logging.Int("scanned", report.Scanned),
			logging.Int("accepted", report.Accepted),
			logging.Int("rejected", report.Rejected),
			logging.Int("failed", report.Failed),
			logging.Int("queue_length", m.queue.Len()),
		)
	}
	if report.Accepted > 0 {
		if err := m.notifier.NotifyIngested(ctx, report.Accepted); err != nil {
			logging.DebugAt(logger, 2, "ingest notification failed", logging.Error(err))
		}
	}
	return report, nil
}

func (m *Manager) enqueue(logger *slog.Logger, item queue.Item, report *IngestReport) {
	err := m.queue.Add(item)
	switch {
	case err == nil:
		report.Accepted++
		logging.Success(logger, "media queued",
			logging.String(logging.FieldEventType, "media_queued"),
			logging.String("sorted_path", item.Path),
			logging.String("kind", string(item.Kind)),
		)
	case errors.Is(err, queue.ErrDuplicate):
		logging.DebugAt(logger, 2, "sorted file already queued", logging.String("sorted_path", item.Path))
	default:
		report.Failed++
		logging.ErrorWithContext(logger, "could not queue sorted file", "queue_add_failed",
			logging.Error(err),
			logging.String("sorted_path", item.Path),
			logging.String(logging.FieldErrorHint, "the file stays in the sorted directory and is picked up on restart"),
		)
	}
}

// discard moves path into the discard directory under a free name. Discarded
// files are never classified again.
func (m *Manager) discard(logger *slog.Logger, path string) (string, bool) {
	dir := m.cfg.Paths.DiscardDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.ErrorWithContext(logger, "discard directory unavailable", "discard_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.discard_dir permissions"),
			logging.String(logging.FieldImpact, "file stays in place and is retried next pass"),
		)
		return "", false
	}
	base := filepath.Base(path)
	dst, err := fileutil.UniquePath(dir, fileutil.Stem(base), filepath.Ext(base))
	if err == nil {
		err = fileutil.MoveFile(path, dst)
	}
	if err != nil {
		logging.ErrorWithContext(logger, "could not move file to discard directory", "discard_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "move the file out of the way manually"),
			logging.String(logging.FieldImpact, "file stays in place and is retried next pass"),
		)
		return "", false
	}
	logger.Info("file moved to discard directory",
		logging.String(logging.FieldEventType, "media_discarded"),
		logging.String("discard_path", dst),
	)
	return dst, true
}
