package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dropcast/internal/logging"
	"dropcast/internal/services"
)

// Start launches both lanes in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane == nil || lane.run == nil {
			continue
		}
		lane.logger = m.logger.With(logging.String(logging.FieldLane, string(lane.kind)))
		lane.stopped = false
		lane.stopCause = ""
		lanes = append(lanes, lane)
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow lanes not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.state = stateIdle
	m.wg.Add(len(lanes))
	m.mu.Unlock()

	for _, lane := range lanes {
		go m.runLane(services.WithLane(runCtx, string(lane.kind)), lane)
	}
	return nil
}

// Stop cancels both lanes and waits for them to return. The wait is bounded
// by timeout but never shorter than the post timeout, so a post already on
// the wire can resolve and be recorded.
func (m *Manager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()

	if timeout < m.postTimeout {
		timeout = m.postTimeout
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		logging.WarnWithContext(m.logger, "workflow lanes did not stop in time", "workflow_stop_timeout",
			logging.Duration("timeout", timeout),
			logging.String(logging.FieldImpact, "an in-flight post may be recorded after shutdown"),
		)
		return fmt.Errorf("workflow lanes still running after %s", timeout)
	}
}

// Running reports whether the lanes were started and not stopped.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	logger := lane.logger
	if logger == nil {
		logger = m.logger
	}
	logging.DebugAt(logger, 1, "lane started")
	lane.run(ctx, lane)
	logging.DebugAt(logger, 1, "lane exited")
}

// stopLane marks lane as permanently stopped for this run.
func (m *Manager) stopLane(lane *laneState, cause error) {
	m.mu.Lock()
	lane.stopped = true
	if cause != nil {
		lane.stopCause = cause.Error()
		m.lastErr = cause
	}
	if lane.kind == lanePublish {
		m.state = stateStopped
	}
	m.mu.Unlock()
	logging.ErrorWithContext(lane.logger, "lane stopped", "lane_stopped",
		logging.Error(cause),
		logging.String(logging.FieldImpact, fmt.Sprintf("%s lane halted until restart", lane.kind)),
		logging.String(logging.FieldErrorHint, "fix the cause and restart the daemon"),
	)
}

// sleep waits for d or until ctx ends, reporting false in the latter case.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
