package logging

import (
	"context"
	"log/slog"
	"strings"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Level is the minimum slog level forwarded to the sink. Debug records
	// are further filtered by the sink's debug level.
	Level slog.Leveler
}

// NewLogger returns a *slog.Logger that feeds the sink, so slog callers and
// direct sink producers share one ordered stream.
func NewLogger(sink *Sink, opts LoggerOptions) *slog.Logger {
	if sink == nil {
		return NewNop()
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return slog.New(&sinkHandler{sink: sink, level: level})
}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SeverityForLevel maps an slog level onto a sink severity and, for debug
// records, the debug verbosity.
func SeverityForLevel(level slog.Level) (Severity, int) {
	switch {
	case level >= slog.LevelError:
		return SeverityError, 0
	case level >= slog.LevelWarn:
		return SeverityWarn, 0
	case level >= LevelSuccess:
		return SeveritySuccess, 0
	case level >= slog.LevelInfo:
		return SeverityLog, 0
	default:
		return SeverityDebug, DefaultDebugLevel + int(level-slog.LevelDebug)
	}
}

type sinkHandler struct {
	sink   *Sink
	level  slog.Leveler
	attrs  []Field
	groups []string
}

func (h *sinkHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := h.level.Level()
	if level < slog.LevelInfo {
		return min <= slog.LevelDebug
	}
	return level >= min
}

func (h *sinkHandler) Handle(ctx context.Context, record slog.Record) error {
	severity, debugLevel := SeverityForLevel(record.Level)

	fields := make([]Field, 0, len(h.attrs)+record.NumAttrs()+4)
	fields = append(fields, h.attrs...)
	for _, attr := range ContextFields(ctx) {
		fields = appendAttr(fields, "", attr)
	}
	group := strings.Join(h.groups, ".")
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, group, attr)
		return true
	})
	fields = dedupeFields(fields)

	var prefix string
	filtered := fields[:0:0]
	for _, f := range fields {
		if f.Key == FieldComponent {
			prefix = f.Value
			continue
		}
		filtered = append(filtered, f)
	}

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	opts := []EmitOption{WithPrefix(prefix), WithFields(filtered...), withTime(record)}
	if severity == SeverityDebug {
		opts = append(opts, WithDebugLevel(debugLevel))
	}
	h.sink.Emit(severity, message, opts...)
	return nil
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	group := strings.Join(clone.groups, ".")
	for _, attr := range attrs {
		clone.attrs = appendAttr(clone.attrs, group, attr)
	}
	return clone
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *sinkHandler) clone() *sinkHandler {
	return &sinkHandler{
		sink:   h.sink,
		level:  h.level,
		attrs:  append([]Field(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

func withTime(record slog.Record) EmitOption {
	return func(r *Record) {
		if !record.Time.IsZero() {
			r.Time = record.Time
		}
	}
}
