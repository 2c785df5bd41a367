// Package captions resolves per-post options from the user's options file.
//
// The file starts with a free-form header line. Every further line reads
//
//	<file name> | <caption> [--latlon <lat>,<lon>]
//
// where the file name is either the name of the sorted file or its stem. A
// line is consumed once the matching item leaves the queue. Captions are
// normalized to NFC and always end with the configured permanent hashtags.
package captions

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"dropcast/internal/logging"
	"dropcast/internal/publish"
	"dropcast/internal/services"
)

const separator = " | "

// Config locates the options file and shapes the caption.
type Config struct {
	OptionsFile       string
	PermanentHashtags string
	// MaxLength caps the caption in characters; zero means publish.MaxCaptionRunes.
	MaxLength int
}

// Resolver reads and consumes lines from the options file.
type Resolver struct {
	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
}

// NewResolver constructs a resolver.
func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	if cfg.MaxLength <= 0 || cfg.MaxLength > publish.MaxCaptionRunes {
		cfg.MaxLength = publish.MaxCaptionRunes
	}
	cfg.PermanentHashtags = norm.NFC.String(strings.TrimSpace(cfg.PermanentHashtags))
	return &Resolver{cfg: cfg, logger: logging.NewComponentLogger(logger, "captions")}
}

// Resolve returns the options for the item at path without consuming its
// line. Without a matching line the caption is the permanent hashtags.
func (r *Resolver) Resolve(path string) (publish.Options, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, err := r.readLines()
	if err != nil {
		return publish.Options{}, err
	}
	idx := matchLine(lines, path)
	if idx < 0 {
		return publish.Options{Caption: r.cfg.PermanentHashtags}, nil
	}
	opts := r.parse(lines[idx], path)
	if err := opts.Validate(); err != nil {
		return publish.Options{}, services.Wrap(services.ErrValidation, "captions", "resolve", filepath.Base(path), err)
	}
	return opts, nil
}

// Consume removes the line for path, if any, and reports whether one was
// removed. The header line is always kept.
func (r *Resolver) Consume(path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, err := r.readLines()
	if err != nil || len(lines) == 0 {
		return false, err
	}
	idx := matchLine(lines, path)
	if idx < 0 {
		return false, nil
	}
	remaining := append(lines[:idx:idx], lines[idx+1:]...)
	if err := r.writeLines(remaining); err != nil {
		return false, err
	}
	logging.DebugAt(r.logger, 3, "post options consumed",
		logging.String(logging.FieldItemPath, path),
		logging.Int("remaining", len(remaining)-1),
	)
	return true, nil
}

// Pending returns the number of option lines not yet consumed.
func (r *Resolver) Pending() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines, err := r.readLines()
	if err != nil || len(lines) <= 1 {
		return 0, err
	}
	n := 0
	for _, line := range lines[1:] {
		if strings.Contains(line, separator) {
			n++
		}
	}
	return n, nil
}

func (r *Resolver) parse(line, path string) publish.Options {
	_, rest, _ := strings.Cut(line, separator)
	caption, flags, _ := strings.Cut(rest, " --")
	caption = norm.NFC.String(strings.TrimSpace(caption))

	var opts publish.Options
	if flags != "" {
		for _, flag := range strings.Split("--"+flags, " --") {
			name, value, _ := strings.Cut(strings.TrimSpace(strings.TrimPrefix(flag, "--")), " ")
			switch name {
			case "latlon":
				loc, err := parseLatLon(value)
				if err != nil {
					logging.WarnWithContext(r.logger, "ignoring invalid location", "options_invalid_location",
						logging.String(logging.FieldItemPath, path),
						logging.String("value", value),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "use --latlon <lat>,<lon> with decimal degrees"),
						logging.String(logging.FieldImpact, "post is published without a location"),
					)
					continue
				}
				opts.Location = loc
			case "":
			default:
				logging.DebugAt(r.logger, 3, "ignoring unknown post option",
					logging.String("option", name),
					logging.String(logging.FieldItemPath, path),
				)
			}
		}
	}
	opts.Caption = r.compose(caption)
	return opts
}

// compose appends the permanent hashtags and trims the caption body so the
// result fits MaxLength.
func (r *Resolver) compose(caption string) string {
	tags := r.cfg.PermanentHashtags
	if caption == "" {
		return truncateRunes(tags, r.cfg.MaxLength)
	}
	if tags == "" {
		return truncateRunes(caption, r.cfg.MaxLength)
	}
	budget := r.cfg.MaxLength - utf8.RuneCountInString(tags) - 1
	if budget <= 0 {
		return truncateRunes(tags, r.cfg.MaxLength)
	}
	return strings.TrimSpace(truncateRunes(caption, budget)) + "\n" + tags
}

func (r *Resolver) readLines() ([]string, error) {
	if strings.TrimSpace(r.cfg.OptionsFile) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(r.cfg.OptionsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read options file: %w", err)
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan options file: %w", err)
	}
	return lines, nil
}

func (r *Resolver) writeLines(lines []string) error {
	dir := filepath.Dir(r.cfg.OptionsFile)
	tmp, err := os.CreateTemp(dir, ".post_options-*")
	if err != nil {
		return fmt.Errorf("create temp options file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write options file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close options file: %w", err)
	}
	if info, err := os.Stat(r.cfg.OptionsFile); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	}
	if err := os.Rename(tmpName, r.cfg.OptionsFile); err != nil {
		return fmt.Errorf("replace options file: %w", err)
	}
	return nil
}

// matchLine finds the first line after the header naming path by file name
// or by stem.
func matchLine(lines []string, path string) int {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for i := 1; i < len(lines); i++ {
		name, _, ok := strings.Cut(lines[i], separator)
		if !ok {
			continue
		}
		name = norm.NFC.String(strings.TrimSpace(name))
		if name == base || name == stem {
			return i
		}
	}
	return -1
}

func parseLatLon(value string) (*publish.Location, error) {
	latText, lonText, ok := strings.Cut(strings.TrimSpace(value), ",")
	if !ok {
		return nil, errors.New("expected <lat>,<lon>")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	loc := &publish.Location{Latitude: lat, Longitude: lon}
	if err := (publish.Options{Location: loc}).Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
