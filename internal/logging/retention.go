package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionTarget selects the files of one kind in one directory, such as
// the per-run logs or event archives in log_dir.
type RetentionTarget struct {
	Dir     string
	Pattern string
	// Keep lists paths that are never removed, normally the current run.
	Keep []string
	// KeepNewest preserves this many of the most recent matches whatever
	// their age, so a daemon that was down for weeks still has history.
	KeepNewest int
}

// PruneReport summarizes one CleanupOldLogs call.
type PruneReport struct {
	Removed int
	Bytes   int64
	Failed  int
}

type retentionCandidate struct {
	path    string
	size    int64
	modTime time.Time
}

// CleanupOldLogs removes matching files older than retentionDays. A
// retentionDays of zero or less disables pruning. Failures are logged and
// counted but never returned: retention must not block startup.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) PruneReport {
	var report PruneReport
	if retentionDays <= 0 {
		return report
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, target := range targets {
		for _, c := range expiredFiles(target, cutoff) {
			if err := os.Remove(c.path); err != nil {
				report.Failed++
				WarnWithContext(logger, "old log file could not be removed", "log_retention_failed",
					String("path", c.path),
					Error(err),
					String(FieldErrorHint, "check the ownership of logging directory files"),
					String(FieldImpact, "the file stays on disk"),
				)
				continue
			}
			report.Removed++
			report.Bytes += c.size
			DebugAt(logger, DefaultDebugLevel, "log pruned",
				String("path", c.path),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
	if report.Removed > 0 && logger != nil {
		logger.Info("old logs pruned",
			String(FieldEventType, "log_retention"),
			Int("removed", report.Removed),
			Int("bytes", int(report.Bytes)),
			Int("retention_days", retentionDays),
		)
	}
	return report
}

// expiredFiles lists the files of target that are older than cutoff and not
// protected by Keep or KeepNewest.
func expiredFiles(target RetentionTarget, cutoff time.Time) []retentionCandidate {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	keep := make(map[string]bool, len(target.Keep))
	for _, path := range target.Keep {
		if path = strings.TrimSpace(path); path != "" {
			keep[filepath.Clean(path)] = true
		}
	}
	pattern := strings.TrimSpace(target.Pattern)

	var matches []retentionCandidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := filepath.Join(dir, entry.Name())
		if keep[filepath.Clean(path)] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		matches = append(matches, retentionCandidate{path: path, size: info.Size(), modTime: info.ModTime()})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].modTime.After(matches[j].modTime) })
	if target.KeepNewest > 0 {
		matches = matches[min(target.KeepNewest, len(matches)):]
	}
	expired := matches[:0]
	for _, c := range matches {
		if c.modTime.Before(cutoff) {
			expired = append(expired, c)
		}
	}
	return expired
}
