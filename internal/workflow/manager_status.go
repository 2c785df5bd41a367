package workflow

import (
	"context"
	"errors"
	"time"

	"dropcast/internal/logging"
	"dropcast/internal/queue"
)

// Counters accumulate since the manager was built.
type Counters struct {
	Ingested int `json:"ingested"`
	Rejected int `json:"rejected"`
	Posted   int `json:"posted"`
}

// LaneStatus reports the health of one lane.
type LaneStatus struct {
	Name      string    `json:"name"`
	Stopped   bool      `json:"stopped"`
	StopCause string    `json:"stop_cause,omitempty"`
	LastRun   time.Time `json:"last_run,omitempty"`
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running      bool         `json:"running"`
	PublishState string       `json:"publish_state"`
	LoggedIn     bool         `json:"logged_in"`
	Provider     string       `json:"provider"`
	LastError    string       `json:"last_error,omitempty"`
	LastPosted   *queue.Item  `json:"last_posted,omitempty"`
	LastPostedAt time.Time    `json:"last_posted_at,omitempty"`
	Counters     Counters     `json:"counters"`
	Lanes        []LaneStatus `json:"lanes"`
	Queue        queue.Status `json:"queue"`
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:      m.running,
		PublishState: string(m.state),
		LoggedIn:     m.loggedIn,
		Provider:     m.poster.Name(),
		LastPostedAt: m.lastPostedAt,
		Counters:     m.counters,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastPosted != nil {
		copy := *m.lastPosted
		summary.LastPosted = &copy
	}
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		summary.Lanes = append(summary.Lanes, LaneStatus{
			Name:      string(kind),
			Stopped:   lane.stopped,
			StopCause: lane.stopCause,
			LastRun:   lane.lastRun,
		})
	}
	m.mu.RUnlock()

	summary.Queue = m.queue.Snapshot()
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setState(state publishState) {
	m.mu.Lock()
	if m.state != stateStopped {
		m.state = state
	}
	m.mu.Unlock()
}

func (m *Manager) setLoggedIn(v bool) {
	m.mu.Lock()
	m.loggedIn = v
	m.mu.Unlock()
}

func (m *Manager) isLoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loggedIn
}

func (m *Manager) markLaneRun(lane *laneState) {
	m.mu.Lock()
	lane.lastRun = m.now()
	m.mu.Unlock()
}

func (m *Manager) notifyError(ctx context.Context, err error, label string) {
	if err == nil {
		return
	}
	if nerr := m.notifier.NotifyError(ctx, err, label); nerr != nil {
		if errors.Is(nerr, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send error notification")
			return
		}
		logging.DebugAt(m.logger, 2, "error notification failed", logging.Error(nerr))
	}
}
