// Package api defines the wire-format types served by the daemon's HTTP API
// and the client the CLI uses to read them. It translates internal workflow,
// queue, history and log models into transport-friendly DTOs so consumers
// never couple to internal types.
//
// # Key Types
//
// DaemonStatus: running state, lock and history paths, workflow summary,
// external tool availability and log sink counters.
//
// QueueListResponse: queued items in posting order plus the scheduler state.
//
// HistoryResponse: recent post attempts, newest first, with outcome counts.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// durations are whole seconds or milliseconds as named.
package api
