package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func TestCleanupOldLogsRemovesOnlyExpiredMatches(t *testing.T) {
	dir := t.TempDir()
	day := 24 * time.Hour
	expired := writeAged(t, dir, "dropcast-old.log", 10*day)
	current := writeAged(t, dir, "dropcast-current.log", 10*day)
	fresh := writeAged(t, dir, "dropcast-new.log", 0)
	other := writeAged(t, dir, "notes.txt", 10*day)

	report := CleanupOldLogs(NewNop(), 7, RetentionTarget{Dir: dir, Pattern: "dropcast-*.log", Keep: []string{current}})
	if report.Removed != 1 || report.Bytes != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Fatal("expected expired log to be removed")
	}
	for _, keep := range []string{current, fresh, other} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s to remain: %v", keep, err)
		}
	}
	if got := CleanupOldLogs(nil, 0, RetentionTarget{Dir: dir}); got.Removed != 0 {
		t.Fatal("zero retention must disable pruning")
	}
}

func TestCleanupOldLogsKeepsNewestRuns(t *testing.T) {
	dir := t.TempDir()
	day := 24 * time.Hour
	oldest := writeAged(t, dir, "dropcast-1.events", 30*day)
	middle := writeAged(t, dir, "dropcast-2.events", 20*day)
	newest := writeAged(t, dir, "dropcast-3.events", 10*day)

	report := CleanupOldLogs(nil, 7, RetentionTarget{Dir: dir, Pattern: "dropcast-*.events", KeepNewest: 2})
	if report.Removed != 1 {
		t.Fatalf("expected only the oldest run removed, got %+v", report)
	}
	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Fatal("oldest archive should be gone")
	}
	for _, keep := range []string{middle, newest} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s to remain: %v", keep, err)
		}
	}
}
