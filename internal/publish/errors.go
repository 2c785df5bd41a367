package publish

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies a failed post for the scheduler.
type FailureKind string

const (
	KindTransient    FailureKind = "transient"
	KindAuth         FailureKind = "auth"
	KindRateLimited  FailureKind = "rate_limited"
	KindInvalidMedia FailureKind = "invalid_media"
)

// Classifier is implemented by errors that know their failure kind.
type Classifier interface {
	ErrorKind() FailureKind
}

// Classify maps err to a failure kind. Unclassified errors are transient.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	var classifier Classifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return KindTransient
}

// RetryAfter extracts the delay suggested by a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}

// AuthError reports rejected or missing credentials.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) ErrorKind() FailureKind { return KindAuth }

// RateLimitError reports that the platform refused further posts for now.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (e *RateLimitError) ErrorKind() FailureKind { return KindRateLimited }

// InvalidMediaError reports a file the platform will never accept.
type InvalidMediaError struct {
	Provider string
	Path     string
	Err      error
}

func (e *InvalidMediaError) Error() string {
	return fmt.Sprintf("%s: media rejected %s: %v", e.Provider, e.Path, e.Err)
}

func (e *InvalidMediaError) Unwrap() error { return e.Err }

func (e *InvalidMediaError) ErrorKind() FailureKind { return KindInvalidMedia }

// IsTimeout reports whether err came from the post deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
