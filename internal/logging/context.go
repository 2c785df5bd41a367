package logging

import (
	"context"
	"log/slog"

	"dropcast/internal/services"
)

// Field keys shared by every destination. The stream hub lifts lane, item
// path and attempt id out of the field list into their own event columns.
const (
	FieldComponent = "component"
	FieldItemPath  = "item_path"
	FieldLane      = "lane"
	FieldAttemptID = "attempt_id"
	// FieldEventType names the event a record describes (e.g. post_succeeded).
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact says what the user loses because of a warning.
	FieldImpact = "impact"
)

// ContextFields returns the lane, item path and attempt id stored in ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if path, ok := services.ItemPathFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldItemPath, path))
	}
	if lane, ok := services.LaneFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldLane, lane))
	}
	if id, ok := services.AttemptIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAttemptID, id))
	}
	return fields
}
