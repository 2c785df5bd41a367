package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

// statusStyles is indexed by statusKind.
var statusStyles = [...]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

func (k statusKind) style() (label, color string) {
	if k < 0 || int(k) >= len(statusStyles) {
		k = statusInfo
	}
	return statusStyles[k].label, statusStyles[k].color
}

func paint(text, color string, colorize bool) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

// renderStatusLine formats "  Label:   [KIND] message" with the label padded
// to a fixed column.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag, color := kind.style()
	line := fmt.Sprintf("  %-20s [%s]", label+":", tag)
	if message != "" {
		line += " " + message
	}
	return paint(line, color, colorize)
}

func printSection(w io.Writer, title string, colorize bool, lines []string) {
	_, blue := statusInfo.style()
	header := "== " + strings.TrimSpace(title) + " =="
	fmt.Fprintln(w, paint(header, blue, colorize))
	fmt.Fprintln(w, paint(strings.Repeat("-", len(header)), blue, colorize))
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

// shouldColorize reports whether w is a terminal.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// formatSeconds renders a countdown as 1h02m03s, dropping leading zero units.
func formatSeconds(seconds int64) string {
	if seconds <= 0 {
		return "now"
	}
	d := time.Duration(seconds) * time.Second
	h := int64(d / time.Hour)
	m := int64(d%time.Hour) / int64(time.Minute)
	s := int64(d%time.Minute) / int64(time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// formatTimestamp shortens an API timestamp to local wall-clock time.
func formatTimestamp(value string) string {
	if value == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
