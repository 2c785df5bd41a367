// Package daemon coordinates the long-running dropcast process.
//
// It wires configuration, the workflow manager, the history store and the
// log sink into a single lifecycle with flock-based locking to prevent
// multiple instances. On start it runs preflight checks, enqueues whatever
// the sorted directories already hold, launches both worker lanes and serves
// the status API and the websocket log relay.
//
// Keep orchestration logic here: individual worker steps live in workflow
// while the daemon focuses on startup, shutdown and read-only status.
package daemon
