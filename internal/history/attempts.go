package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Outcome values stored per attempt.
const (
	OutcomePosted    = "posted"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
	OutcomeFrozen    = "frozen"
	OutcomeAuth      = "auth_failed"
)

// Attempt is one call to the remote poster.
type Attempt struct {
	ID         int64     `json:"id"`
	AttemptID  string    `json:"attempt_id"`
	Path       string    `json:"path"`
	Kind       string    `json:"kind"`
	Caption    string    `json:"caption,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration reports how long the attempt ran.
func (a Attempt) Duration() time.Duration {
	if a.FinishedAt.Before(a.StartedAt) {
		return 0
	}
	return a.FinishedAt.Sub(a.StartedAt)
}

const timeLayout = time.RFC3339Nano

// Record appends an attempt and returns its row id.
func (s *Store) Record(ctx context.Context, a Attempt) (int64, error) {
	if err := s.open(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(a.Path) == "" {
		return 0, errors.New("attempt path is empty")
	}
	if strings.TrimSpace(a.Outcome) == "" {
		return 0, errors.New("attempt outcome is empty")
	}
	if a.FinishedAt.IsZero() {
		a.FinishedAt = time.Now()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = a.FinishedAt
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var id int64
	err := withBusyRetry(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`INSERT INTO post_attempts (attempt_id, path, kind, caption, provider, outcome, detail, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.AttemptID, a.Path, a.Kind, a.Caption, a.Provider, a.Outcome, a.Detail,
			a.StartedAt.UTC().Format(timeLayout), a.FinishedAt.UTC().Format(timeLayout),
		)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	return id, nil
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, path, kind, caption, provider, outcome, detail, started_at, finished_at
		 FROM post_attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

// Counts returns the number of attempts per outcome.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT outcome, COUNT(1) FROM post_attempts GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func scanAttempt(rows *sql.Rows) (Attempt, error) {
	var (
		a                 Attempt
		started, finished string
	)
	if err := rows.Scan(&a.ID, &a.AttemptID, &a.Path, &a.Kind, &a.Caption, &a.Provider,
		&a.Outcome, &a.Detail, &started, &finished); err != nil {
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	a.StartedAt = parseTime(started)
	a.FinishedAt = parseTime(finished)
	return a, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
