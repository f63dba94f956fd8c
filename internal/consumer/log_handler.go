package consumer

import (
	"context"

	"github.com/rs/zerolog"
)

// LogHandler writes every event to a structured audit log.
type LogHandler struct {
	logger zerolog.Logger
}

// NewLogHandler constructs a LogHandler.
func NewLogHandler(logger zerolog.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

// Handle logs msg at info level.
func (h *LogHandler) Handle(_ context.Context, msg Message) error {
	h.logger.Info().
		Str("event_type", msg.EventType).
		Str("activity_id", msg.Payload.ActivityID).
		Str("activity_type", msg.Payload.Type).
		Float64("duration_min", msg.Payload.DurationMin).
		Str("date", msg.Payload.Date).
		Int("list_size", msg.ListSize).
		Time("occurred_at", msg.Payload.OccurredAt).
		Int64("offset", msg.Offset).
		Msg("activity event")
	return nil
}
