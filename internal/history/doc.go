// Package history keeps an SQLite audit trail of publish attempts.
//
// Each call to the remote poster produces one row: which file was sent, the
// caption it carried, how long the attempt took and how it ended. The table
// is append-only and read by the status surfaces. The in-memory publish queue
// is never rebuilt from it; on restart the daemon rediscovers pending media
// from the sorted directories instead.
//
// Schema changes bump schemaVersion; users delete the database to adopt a
// new schema.
package history
