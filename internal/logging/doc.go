// Package logging owns dropcast's single ordered status stream.
//
// A Sink accepts records from any goroutine without blocking and hands them,
// in enqueue order, to a single consumer that writes every attached
// Destination: the console, a log file, the StreamHub behind /api/logs, and
// websocket relays that attach at runtime. Ask and Confirm serialize prompts
// with that stream so a question is never split by a concurrent log line.
//
// Package code logs through *slog.Logger values built with NewLogger, using
// the attribute helpers here (String, Error, WarnWithContext, ...) so every
// record carries the same structured fields.
package logging
