// Package main hosts the dropcast CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground and turns
// the read-only commands (status, queue, history, logs) into calls against
// the daemon's HTTP API. It centralizes configuration resolution and API
// client construction so subcommands can focus on presentation.
//
// Keep this package lean: new behavior belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
