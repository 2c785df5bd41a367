// Package notifications pushes daemon events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// workers call the Service unconditionally. Each event family can be switched
// off in the [notifications] section. Delivery failures are returned to the
// caller, which logs them; they never affect posting or ingestion.
package notifications
