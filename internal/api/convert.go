package api

import (
	"path/filepath"
	"time"

	"dropcast/internal/deps"
	"dropcast/internal/history"
	"dropcast/internal/logging"
	"dropcast/internal/queue"
	"dropcast/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromQueueItem converts a queue item at the given 1-based position.
func FromQueueItem(position int, item queue.Item) QueueItem {
	return QueueItem{
		Position: position,
		Path:     item.Path,
		Name:     filepath.Base(item.Path),
		Kind:     string(item.Kind),
		Caption:  item.Caption,
		AddedAt:  formatTime(item.AddedAt),
	}
}

// FromQueueItems converts items in posting order.
func FromQueueItems(items []queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for i, item := range items {
		out = append(out, FromQueueItem(i+1, item))
	}
	return out
}

// FromQueueStatus converts a scheduler snapshot taken at now.
func FromQueueStatus(status queue.Status, now time.Time) QueueStatus {
	out := QueueStatus{
		Length:              status.Length,
		CooldownSeconds:     int64(status.Cooldown / time.Second),
		ConsecutiveFailures: status.Failures,
		InFlight:            status.InFlight,
	}
	if status.Cooldown > 0 {
		out.CooldownUntil = formatTime(status.CooldownUntil)
	}
	if status.Freeze != nil {
		out.Freeze = &FreezeStatus{
			Reason:           status.Freeze.Reason,
			Until:            formatTime(status.Freeze.Until),
			RemainingSeconds: int64(status.Freeze.Remaining(now) / time.Second),
		}
	}
	return out
}

// FromStatusSummary converts the workflow summary.
func FromStatusSummary(summary workflow.StatusSummary, now time.Time) WorkflowStatus {
	out := WorkflowStatus{
		Running:      summary.Running,
		PublishState: summary.PublishState,
		LoggedIn:     summary.LoggedIn,
		Provider:     summary.Provider,
		LastError:    summary.LastError,
		LastPostedAt: formatTime(summary.LastPostedAt),
		Ingested:     summary.Counters.Ingested,
		Rejected:     summary.Counters.Rejected,
		Posted:       summary.Counters.Posted,
		Queue:        FromQueueStatus(summary.Queue, now),
	}
	if summary.LastPosted != nil {
		item := FromQueueItem(0, *summary.LastPosted)
		out.LastPosted = &item
	}
	for _, lane := range summary.Lanes {
		out.Lanes = append(out.Lanes, LaneStatus{
			Name:      lane.Name,
			Stopped:   lane.Stopped,
			StopCause: lane.StopCause,
			LastRun:   formatTime(lane.LastRun),
		})
	}
	return out
}

// FromDependencies converts external tool checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromSinkStats converts log sink counters.
func FromSinkStats(stats logging.SinkStats, destinations []string) *SinkStatus {
	return &SinkStatus{
		Enqueued:          stats.Enqueued,
		Delivered:         stats.Delivered,
		Pending:           stats.Pending,
		Filtered:          stats.Filtered,
		DestinationErrors: stats.DestinationErrors,
		Destinations:      destinations,
	}
}

// FromAttempts converts history rows, keeping their order.
func FromAttempts(attempts []history.Attempt) []Attempt {
	out := make([]Attempt, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, Attempt{
			ID:             a.ID,
			AttemptID:      a.AttemptID,
			Path:           a.Path,
			Name:           filepath.Base(a.Path),
			Kind:           a.Kind,
			Caption:        a.Caption,
			Provider:       a.Provider,
			Outcome:        a.Outcome,
			Detail:         a.Detail,
			StartedAt:      formatTime(a.StartedAt),
			DurationMillis: a.Duration().Milliseconds(),
		})
	}
	return out
}

// FromLogEvents converts hub or archive events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: formatTime(evt.Timestamp),
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Lane:      evt.Lane,
			ItemPath:  evt.ItemPath,
			AttemptID: evt.AttemptID,
			Fields:    evt.Fields,
		})
	}
	return out
}

// ParseTime parses a payload timestamp; malformed values yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
