package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dropcast/internal/logging"
	"dropcast/internal/media"
	"dropcast/internal/queue"
)

type discovered struct {
	path    string
	kind    media.Kind
	modTime time.Time
}

// Discover enqueues every file already present in the sorted directories,
// oldest first (ties broken by name). It runs under the filesystem lock and
// returns the number of items added. Files already queued are skipped.
func (m *Manager) Discover(ctx context.Context) (int, error) {
	release, err := m.lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire filesystem lock: %w", err)
	}
	defer release()

	var found []discovered
	for _, dir := range []struct {
		path string
		kind media.Kind
	}{
		{m.cfg.Paths.SortedImageDir, media.KindImage},
		{m.cfg.Paths.SortedVideoDir, media.KindVideo},
	} {
		entries, err := os.ReadDir(dir.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("list %s: %w", dir.path, err)
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			found = append(found, discovered{
				path:    filepath.Join(dir.path, entry.Name()),
				kind:    dir.kind,
				modTime: info.ModTime(),
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if !found[i].modTime.Equal(found[j].modTime) {
			return found[i].modTime.Before(found[j].modTime)
		}
		return filepath.Base(found[i].path) < filepath.Base(found[j].path)
	})

	added := 0
	for _, f := range found {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		if m.queue.Contains(f.path) {
			continue
		}
		if err := m.queue.Add(queue.Item{Path: f.path, Kind: f.kind}); err != nil {
			logging.WarnWithContext(m.logger, "could not queue sorted file", "discover_add_failed",
				logging.Error(err),
				logging.String(logging.FieldItemPath, f.path),
			)
			continue
		}
		added++
	}
	if added > 0 {
		m.logger.Info("queued files left from a previous run",
			logging.String(logging.FieldEventType, "discover_complete"),
			logging.Int("added", added),
			logging.Int("queue_length", m.queue.Len()),
		)
	}
	return added, nil
}
