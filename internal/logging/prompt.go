package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoAnswer is returned when input ends before a required answer is given.
var ErrNoAnswer = errors.New("no answer provided")

// Ask shows prompt and returns the line typed in response. Everything emitted
// before the call is delivered first, and no record is written while the
// prompt is waiting. A nil def repeats the prompt until a non-empty answer is
// read. The exchange is recorded afterwards for non-console destinations.
func (s *Sink) Ask(ctx context.Context, prompt string, def *string) (string, error) {
	if err := s.Flush(ctx); err != nil {
		return "", err
	}
	label := prompt
	if def != nil {
		label = fmt.Sprintf("%s [%s]", prompt, *def)
	}

	s.ioMu.Lock()
	answer, err := s.readAnswerLocked(label, func(line string) (string, bool) {
		if line == "" {
			if def != nil {
				return *def, true
			}
			return "", false
		}
		return line, true
	})
	s.ioMu.Unlock()
	if err != nil {
		return "", err
	}
	s.Emit(SeverityLog, label+": "+answer, interactive())
	return answer, nil
}

// Confirm asks a yes/no question. With a default, any answer other than
// yes or no selects it; a nil def repeats the prompt until one is given.
func (s *Sink) Confirm(ctx context.Context, prompt string, def *bool) (bool, error) {
	if err := s.Flush(ctx); err != nil {
		return false, err
	}
	suffix := "[y/n]"
	if def != nil {
		if *def {
			suffix = "[Y/n]"
		} else {
			suffix = "[y/N]"
		}
	}
	label := prompt + " " + suffix

	s.ioMu.Lock()
	answer, err := s.readAnswerLocked(label, func(line string) (string, bool) {
		switch strings.ToLower(line) {
		case "y", "yes":
			return "yes", true
		case "n", "no":
			return "no", true
		}
		switch {
		case def == nil:
			return "", false
		case *def:
			return "yes", true
		default:
			return "no", true
		}
	})
	s.ioMu.Unlock()
	if err != nil {
		return false, err
	}
	s.Emit(SeverityLog, label+": "+answer, interactive())
	return answer == "yes", nil
}

// readAnswerLocked repeats the prompt until accept approves a line. Callers
// hold ioMu.
func (s *Sink) readAnswerLocked(label string, accept func(string) (string, bool)) (string, error) {
	for {
		if _, err := fmt.Fprintf(s.promptOut, "%s: ", label); err != nil {
			return "", fmt.Errorf("write prompt: %w", err)
		}
		line, readErr := s.input.ReadString('\n')
		if answer, ok := accept(strings.TrimSpace(line)); ok {
			if readErr != nil {
				fmt.Fprintln(s.promptOut)
			}
			return answer, nil
		}
		if readErr != nil {
			fmt.Fprintln(s.promptOut)
			if errors.Is(readErr, io.EOF) {
				return "", ErrNoAnswer
			}
			return "", fmt.Errorf("read answer: %w", readErr)
		}
	}
}
