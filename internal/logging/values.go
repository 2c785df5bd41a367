package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const logTimestampLayout = "2006-01-02 15:04:05"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}

func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	default:
		return v.String()
	}
}

// quoteIfNeeded quotes values that would not survive a key=value split.
func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

// appendAttr flattens attr onto dst. Group members get dotted keys under
// prefix.
func appendAttr(dst []Field, prefix string, attr slog.Attr) []Field {
	value := attr.Value.Resolve()
	isGroup := value.Kind() == slog.KindGroup
	if attr.Key == "" && !isGroup {
		return dst
	}
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if !isGroup {
		return append(dst, Field{Key: key, Value: attrString(value)})
	}
	for _, member := range value.Group() {
		dst = appendAttr(dst, key, member)
	}
	return dst
}

// dedupeFields keeps the first position of each key with its last value.
func dedupeFields(fields []Field) []Field {
	seen := make(map[string]int, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		if i, ok := seen[f.Key]; ok {
			out[i].Value = f.Value
			continue
		}
		seen[f.Key] = len(out)
		out = append(out, f)
	}
	return out
}
