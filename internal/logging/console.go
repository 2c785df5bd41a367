package logging

import (
	"bytes"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGray   = "\x1b[90m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiBold   = "\x1b[1m"
)

// ConsoleDestination writes human-readable lines. Debug, log and success go
// to stdout; warnings and errors go to stderr.
type ConsoleDestination struct {
	stdout     io.Writer
	stderr     io.Writer
	color      bool
	showFields bool
}

// ConsoleOption customizes a ConsoleDestination.
type ConsoleOption func(*ConsoleDestination)

// WithColor forces ANSI colors on or off.
func WithColor(enabled bool) ConsoleOption {
	return func(c *ConsoleDestination) { c.color = enabled }
}

// WithConsoleFields appends structured fields to each line.
func WithConsoleFields(enabled bool) ConsoleOption {
	return func(c *ConsoleDestination) { c.showFields = enabled }
}

// NewConsoleDestination builds a console destination. Colors default to on
// only when stdout is a terminal.
func NewConsoleDestination(stdout, stderr io.Writer, opts ...ConsoleOption) *ConsoleDestination {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	c := &ConsoleDestination{stdout: stdout, stderr: stderr, color: isTerminal(stdout)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ConsoleDestination) Name() string { return "console" }

func (c *ConsoleDestination) Write(rec Record) error {
	if rec.Interactive {
		return nil
	}
	w := c.stdout
	if rec.Severity >= SeverityWarn {
		w = c.stderr
	}
	var buf bytes.Buffer
	writeTextRecord(&buf, rec, c.color, c.showFields)
	_, err := w.Write(buf.Bytes())
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func severityColor(s Severity) string {
	switch s {
	case SeverityDebug:
		return ansiGray
	case SeveritySuccess:
		return ansiGreen
	case SeverityWarn:
		return ansiYellow
	case SeverityError:
		return ansiRed + ansiBold
	default:
		return ""
	}
}

// writeTextRecord renders "<ts> <LABEL> [prefix] text key=value<end>".
func writeTextRecord(buf *bytes.Buffer, rec Record, color, fields bool) {
	buf.WriteString(formatTimestamp(rec.Time))
	buf.WriteByte(' ')
	label := rec.Severity.Label()
	code := ""
	if color {
		code = severityColor(rec.Severity)
	}
	if code != "" {
		buf.WriteString(code)
	}
	buf.WriteString(label)
	for i := len(label); i < 5; i++ {
		buf.WriteByte(' ')
	}
	if code != "" {
		buf.WriteString(ansiReset)
	}
	buf.WriteByte(' ')
	buf.WriteString(rec.Message())
	if fields {
		for _, f := range rec.Fields {
			buf.WriteByte(' ')
			buf.WriteString(f.Key)
			buf.WriteByte('=')
			buf.WriteString(quoteIfNeeded(f.Value))
		}
	}
	buf.WriteString(rec.End)
}
