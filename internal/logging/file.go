package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileDestination appends records to a file as plain text or JSON lines.
type FileDestination struct {
	path   string
	format string

	mu   sync.Mutex
	file *os.File
}

// OpenFileDestination opens (creating if needed) path for appending.
// format is "console" or "json".
func OpenFileDestination(path, format string) (*FileDestination, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := ensureLogDir(trimmed); err != nil {
		return nil, fmt.Errorf("ensure log dir: %w", err)
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "console"
	}
	return &FileDestination{path: trimmed, format: format, file: file}, nil
}

func (f *FileDestination) Name() string { return "file:" + f.path }

// Path returns the on-disk location backing the destination.
func (f *FileDestination) Path() string { return f.path }

func (f *FileDestination) Write(rec Record) error {
	var buf bytes.Buffer
	if f.format == "json" {
		entry := jsonRecord{
			Seq:    rec.Seq,
			TS:     rec.Time.UTC().Format(time.RFC3339Nano),
			Level:  rec.Severity.String(),
			Msg:    rec.Text,
			Fields: rec.FieldMap(),
		}
		if rec.Prefix != "" {
			entry.Component = rec.Prefix
		}
		if err := json.NewEncoder(&buf).Encode(entry); err != nil {
			return err
		}
	} else {
		writeTextRecord(&buf, rec, false, true)
		if !strings.HasSuffix(rec.End, "\n") {
			buf.WriteByte('\n')
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return os.ErrClosed
	}
	_, err := f.file.Write(buf.Bytes())
	return err
}

// Close releases the file handle.
func (f *FileDestination) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

type jsonRecord struct {
	Seq       uint64            `json:"seq"`
	TS        string            `json:"ts"`
	Level     string            `json:"level"`
	Component string            `json:"component,omitempty"`
	Msg       string            `json:"msg"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
