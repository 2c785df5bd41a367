package logging

import (
	"context"
	"log/slog"
	"time"
)

// Attr is the attribute type accepted by every helper in this package.
type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Uint64(key string, value uint64) Attr { return slog.Uint64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error records err under "error". A nil error is kept visible as "<nil>"
// so a misplaced call shows up in the output.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(nopHandler{})
}

// NewComponentLogger tags logger with a component, which console and relay
// destinations render as the record prefix. A nil logger yields a no-op
// logger so components can be constructed without logging in tests.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// Success logs at LevelSuccess, rendered as PASS by text destinations.
func Success(logger *slog.Logger, msg string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(context.Background(), LevelSuccess, msg, attrs...)
}

// DebugAt logs a debug record with an explicit verbosity. Higher verbosity
// survives stricter debug_level settings.
func DebugAt(logger *slog.Logger, verbosity int, msg string, attrs ...Attr) {
	if logger == nil {
		return
	}
	level := slog.LevelDebug + slog.Level(verbosity-DefaultDebugLevel)
	if level >= slog.LevelInfo {
		level = slog.LevelInfo - 1
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// WarnWithContext logs a warning that always carries an event type, a next
// step and the user-facing impact. Missing fields get generic defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, "run dropcast logs for surrounding records"),
		String(FieldImpact, "work continues; the affected item may need attention"),
	)
	logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// ErrorWithContext logs an error that always carries an event type and a
// next step.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, "run dropcast logs for surrounding records"),
	)
	logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

// withDefaults appends each default whose key attrs does not already set.
func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, def := range defaults {
		present := false
		for _, a := range attrs {
			if a.Key == def.Key {
				present = true
				break
			}
		}
		if !present {
			attrs = append(attrs, def)
		}
	}
	return attrs
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
