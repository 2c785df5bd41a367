package services

import "context"

// contextKey values tag the identifiers workers attach to their contexts.
// The logging handler reads them back so records carry the item and lane
// without every call site repeating them.
type contextKey int

const (
	itemPathKey contextKey = iota
	laneKey
	attemptIDKey
)

// WithItemPath annotates ctx with the media file being processed.
func WithItemPath(ctx context.Context, path string) context.Context {
	return withString(ctx, itemPathKey, path)
}

// ItemPathFromContext returns the media file path, if set.
func ItemPathFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, itemPathKey)
}

// WithLane annotates ctx with the workflow lane (ingest or publish).
func WithLane(ctx context.Context, lane string) context.Context {
	return withString(ctx, laneKey, lane)
}

// LaneFromContext returns the lane name, if set.
func LaneFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, laneKey)
}

// WithAttemptID annotates ctx with the identifier of one publish attempt.
// The same id is stored in the history row for that attempt.
func WithAttemptID(ctx context.Context, id string) context.Context {
	return withString(ctx, attemptIDKey, id)
}

// AttemptIDFromContext returns the publish attempt id, if set.
func AttemptIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, attemptIDKey)
}

// withString leaves ctx untouched for empty values so a blank lane or path
// never shadows one set further up.
func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
