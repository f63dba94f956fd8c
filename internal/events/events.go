// Package events publishes committed activity changes to Kafka.
package events

import (
	"time"

	"example.com/activitylog/internal/domain"
)

// DefaultTopic carries every activity event.
const DefaultTopic = "activity_events"

// Header keys set on every record.
const (
	HeaderEventType = "event_type"
	HeaderListSize  = "list_size"
)

// ActivityPayload is the JSON body of created, updated and deleted events.
type ActivityPayload struct {
	ActivityID  string    `json:"activity_id"`
	Type        string    `json:"type"`
	DurationMin float64   `json:"duration_min"`
	Date        string    `json:"date"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PayloadFor converts a domain event into its wire payload.
func PayloadFor(event domain.Event) ActivityPayload {
	return ActivityPayload{
		ActivityID:  event.Activity.ID,
		Type:        event.Activity.Type,
		DurationMin: event.Activity.DurationMin,
		Date:        domain.FormatDateForInput(event.Activity.Date),
		OccurredAt:  event.OccurredAt,
	}
}
