package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queued file in a transport-friendly format.
type QueueItem struct {
	Position int    `json:"position"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Caption  string `json:"caption,omitempty"`
	AddedAt  string `json:"addedAt,omitempty"`
}

// FreezeStatus describes an active posting freeze.
type FreezeStatus struct {
	Reason           string `json:"reason"`
	Until            string `json:"until"`
	RemainingSeconds int64  `json:"remainingSeconds"`
}

// QueueStatus summarizes the publish scheduler.
type QueueStatus struct {
	Length              int           `json:"length"`
	CooldownSeconds     int64         `json:"cooldownSeconds"`
	CooldownUntil       string        `json:"cooldownUntil,omitempty"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	InFlight            bool          `json:"inFlight"`
	Freeze              *FreezeStatus `json:"freeze,omitempty"`
}

// LaneStatus mirrors the health of one worker lane.
type LaneStatus struct {
	Name      string `json:"name"`
	Stopped   bool   `json:"stopped"`
	StopCause string `json:"stopCause,omitempty"`
	LastRun   string `json:"lastRun,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running      bool         `json:"running"`
	PublishState string       `json:"publishState"`
	LoggedIn     bool         `json:"loggedIn"`
	Provider     string       `json:"provider"`
	LastError    string       `json:"lastError,omitempty"`
	LastPosted   *QueueItem   `json:"lastPosted,omitempty"`
	LastPostedAt string       `json:"lastPostedAt,omitempty"`
	Ingested     int          `json:"ingested"`
	Rejected     int          `json:"rejected"`
	Posted       int          `json:"posted"`
	Lanes        []LaneStatus `json:"lanes"`
	Queue        QueueStatus  `json:"queue"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// SinkStatus reports log sink counters.
type SinkStatus struct {
	Enqueued          uint64   `json:"enqueued"`
	Delivered         uint64   `json:"delivered"`
	Pending           int      `json:"pending"`
	Filtered          uint64   `json:"filtered"`
	DestinationErrors uint64   `json:"destinationErrors"`
	Destinations      []string `json:"destinations"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"startedAt,omitempty"`
	LockFilePath string             `json:"lockFilePath"`
	HistoryPath  string             `json:"historyPath,omitempty"`
	LogPath      string             `json:"logPath,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Logging      *SinkStatus        `json:"logging,omitempty"`
}

// QueueListResponse wraps the queued items in posting order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
	Queue QueueStatus `json:"queue"`
}

// Attempt is one recorded post attempt.
type Attempt struct {
	ID             int64  `json:"id"`
	AttemptID      string `json:"attemptId"`
	Path           string `json:"path"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Caption        string `json:"caption,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Outcome        string `json:"outcome"`
	Detail         string `json:"detail,omitempty"`
	StartedAt      string `json:"startedAt"`
	DurationMillis int64  `json:"durationMs"`
}

// HistoryResponse lists recent attempts, newest first.
type HistoryResponse struct {
	Attempts []Attempt      `json:"attempts"`
	Counts   map[string]int `json:"counts,omitempty"`
	Enabled  bool           `json:"enabled"`
}

// LogEvent is a structured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Lane      string            `json:"lane,omitempty"`
	ItemPath  string            `json:"itemPath,omitempty"`
	AttemptID string            `json:"attemptId,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse carries a batch of log events and the cursor for the
// next request.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
