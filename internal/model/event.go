package model

import (
	"encoding/json"
	"time"
)

// Event represents a single ingested application event.
// This is a pure domain model with no database-specific dependencies or tags.
// Payload holds the inline JSON body for small events; events whose body
// exceeded the configured inline cap carry an empty Payload and a PayloadRef
// pointing at the object-store key holding the body.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	PayloadRef string          `json:"payload_ref,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Inline reports whether the payload is stored in the row itself.
func (e *Event) Inline() bool {
	return e.PayloadRef == ""
}
