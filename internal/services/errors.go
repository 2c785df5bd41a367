package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers classify failures. Callers test them with errors.Is; the wrapped
// cause stays reachable through the same chain.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Outcome labels recorded for failed work.
const (
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Wrap tags err with marker and prefixes it with the non-empty parts of
// "component: operation: message". A nil marker counts as transient.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinNonEmpty(component, operation, message)
	if detail == "" {
		detail = "unspecified failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// FailureOutcome maps an error to the label used in logs and history. A file
// that is missing or unusable is rejected; anything else failed.
func FailureOutcome(err error) string {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return OutcomeRejected
	}
	return OutcomeFailed
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ": ")
}
