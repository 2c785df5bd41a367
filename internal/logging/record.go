package logging

import (
	"log/slog"
	"strings"
	"time"
)

// Severity is the semantic weight of a record. Destinations decide how each
// severity is presented.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityLog
	SeveritySuccess
	SeverityWarn
	SeverityError
)

// LevelSuccess sits between info and warn so slog callers can emit success
// records with logger.Log(ctx, logging.LevelSuccess, ...).
const LevelSuccess = slog.Level(2)

// DefaultDebugLevel is the verbosity assigned to debug records that do not
// request one explicitly.
const DefaultDebugLevel = 3

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeveritySuccess:
		return "success"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "log"
	}
}

// Label is the fixed-width column shown by text destinations.
func (s Severity) Label() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeveritySuccess:
		return "PASS"
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "LOG"
	}
}

// ParseSeverity maps a configuration or query string to a severity.
func ParseSeverity(value string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return SeverityDebug, true
	case "log", "info":
		return SeverityLog, true
	case "success", "pass":
		return SeveritySuccess, true
	case "warn", "warning":
		return SeverityWarn, true
	case "error":
		return SeverityError, true
	default:
		return SeverityLog, false
	}
}

// Field is a flattened key/value pair carried alongside the record text.
type Field struct {
	Key   string
	Value string
}

// Record is a single line of status output. Seq is assigned by the sink when
// the record is enqueued and defines the global delivery order.
type Record struct {
	Seq        uint64
	Time       time.Time
	Severity   Severity
	Prefix     string
	Text       string
	Fields     []Field
	End        string
	DebugLevel int
	// Interactive marks prompt transcripts that the console already showed.
	Interactive bool
}

// Message returns the prefixed text without any terminator.
func (r Record) Message() string {
	if r.Prefix == "" {
		return r.Text
	}
	return "[" + r.Prefix + "] " + r.Text
}

// FieldMap returns the record fields keyed by name. Later duplicates win.
func (r Record) FieldMap() map[string]string {
	if len(r.Fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		out[f.Key] = f.Value
	}
	return out
}

func (r Record) field(key string) string {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Key == key {
			return r.Fields[i].Value
		}
	}
	return ""
}

// EmitOption customizes a record before it is enqueued.
type EmitOption func(*Record)

// WithEnd overrides the terminator written after the text (default "\n").
func WithEnd(end string) EmitOption {
	return func(r *Record) { r.End = end }
}

// WithPrefix sets the component prefix shown before the text.
func WithPrefix(prefix string) EmitOption {
	return func(r *Record) { r.Prefix = prefix }
}

// WithDebugLevel sets the verbosity of a debug record.
func WithDebugLevel(level int) EmitOption {
	return func(r *Record) { r.DebugLevel = level }
}

// WithFields appends structured fields to the record.
func WithFields(fields ...Field) EmitOption {
	return func(r *Record) { r.Fields = append(r.Fields, fields...) }
}

func interactive() EmitOption {
	return func(r *Record) { r.Interactive = true }
}
