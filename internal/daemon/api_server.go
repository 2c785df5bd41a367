package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"dropcast/internal/api"
	"dropcast/internal/config"
	"dropcast/internal/logging"
)

const (
	defaultLogLimit     = 200
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	mux    *http.ServeMux

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
		mux:    http.NewServeMux(),
	}
	token := cfg.Paths.APIToken
	srv.mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	srv.mux.HandleFunc("/api/queue", authMiddleware(token, srv.handleQueue))
	srv.mux.HandleFunc("/api/history", authMiddleware(token, srv.handleHistory))
	srv.mux.HandleFunc("/api/logs", authMiddleware(token, srv.handleLogs))
	srv.mux.HandleFunc("/ws/logs", authMiddleware(token, srv.handleRelay))
	return srv
}

// ServeHTTP lets tests drive the routes without a listener.
func (s *apiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.log().Info("api server disabled", logging.String(logging.FieldEventType, "api_disabled"))
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	// No write timeout: follow-mode log requests and websockets stay open.
	server := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, toAPIStatus(s.daemon.Status(), time.Now()))
}

func toAPIStatus(status Status, now time.Time) api.DaemonStatus {
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		HistoryPath:  status.HistoryPath,
		LogPath:      status.LogPath,
		Workflow:     api.FromStatusSummary(status.Workflow, now),
		Dependencies: api.FromDependencies(status.Dependencies),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	if status.Sink != nil {
		payload.Logging = api.FromSinkStats(*status.Sink, status.Destinations)
	}
	return payload
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := s.daemon.workflow.Queue()
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{
		Items: api.FromQueueItems(q.Items()),
		Queue: api.FromQueueStatus(q.Snapshot(), time.Now()),
	})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	store := s.daemon.opts.History
	if store == nil {
		s.writeJSON(w, http.StatusOK, api.HistoryResponse{Enabled: false})
		return
	}
	limit := defaultHistoryLimit
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}
	attempts, err := store.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := store.Counts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{
		Attempts: api.FromAttempts(attempts),
		Counts:   counts,
		Enabled:  true,
	})
}

type logFilter struct {
	component string
	lane      string
	minLevel  logging.Severity
	hasLevel  bool
}

func parseLogFilter(query map[string][]string) logFilter {
	get := func(key string) string {
		if values := query[key]; len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
		return ""
	}
	f := logFilter{component: get("component"), lane: get("lane")}
	if sev, ok := logging.ParseSeverity(get("level")); ok {
		f.minLevel = sev
		f.hasLevel = true
	}
	return f
}

func (f logFilter) match(evt logging.LogEvent) bool {
	if f.component != "" && !strings.EqualFold(f.component, evt.Component) {
		return false
	}
	if f.lane != "" && !strings.EqualFold(f.lane, evt.Lane) {
		return false
	}
	if f.hasLevel {
		sev, ok := logging.ParseSeverity(evt.Level)
		if ok && sev < f.minLevel {
			return false
		}
	}
	return true
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	hub := s.daemon.opts.Hub
	archive := s.daemon.opts.Archive
	if hub == nil && archive == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")
	filter := parseLogFilter(query)

	var (
		events []logging.LogEvent
		next   uint64
		served bool
	)

	// Cursors older than the hub's window are answered from the archive.
	if archive != nil && since > 0 {
		var firstSeq uint64
		if hub != nil {
			firstSeq = hub.FirstSequence()
		}
		if hub == nil || (firstSeq > 0 && since < firstSeq) {
			archived, cursor, err := archive.ReadSince(since, limit)
			if err != nil {
				s.log().Warn("log archive read failed", logging.Error(err))
			} else if len(archived) > 0 {
				events, next, served = archived, cursor, true
			}
		}
	}
	switch {
	case served:
	case hub == nil:
		next = since
	case tail && since == 0 && !follow:
		events, next = hub.Tail(limit)
	default:
		raw, cursor, err := hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		events, next = raw, cursor
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if filter.match(evt) {
			filtered = append(filtered, evt)
		}
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{
		Events: api.FromLogEvents(filtered),
		Next:   next,
	})
}

func (s *apiServer) handleRelay(w http.ResponseWriter, r *http.Request) {
	relay := s.daemon.opts.Relay
	if relay == nil {
		s.writeError(w, http.StatusNotFound, "log relay disabled")
		return
	}
	relay.ServeHTTP(w, r)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
