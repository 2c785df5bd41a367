// Package workflow runs the two dropcast worker lanes.
//
// The ingestion lane periodically sweeps the drop folder under the shared
// filesystem lock, classifies every file, enqueues what was accepted and
// moves everything else to the discard directory for manual review. The
// publish lane owns the remote account: it logs in, waits out the queue
// cooldown, posts the head item with its resolved options, records the
// attempt in the history store and schedules the next window.
//
// The lanes share nothing but the queue and the lock. An authentication
// failure or a queue protocol violation stops the publish lane while
// ingestion keeps sorting new files.
package workflow
