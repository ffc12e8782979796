// Package streams is the hand-off boundary to the notification delivery
// system: new alert matches are appended to a Redis Stream and consumed
// elsewhere. Publishing is strictly fire-and-forget from the sweep's point
// of view.
package streams

import (
	"encoding/json"
	"fmt"
	"time"
)

// StreamAlertMatch carries newly recorded alert matches.
const StreamAlertMatch = "alerts.match"

// EventTypeAlertMatch is the event type written to the stream envelope.
const EventTypeAlertMatch = "alert.match.recorded"

// Envelope is the canonical message wrapper persisted to Redis Streams.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// ValidateBasic ensures mandatory envelope fields are present.
func (e *Envelope) ValidateBasic() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("data payload is required")
	}
	return nil
}

// UnmarshalEnvelope parses JSON bytes into an Envelope and validates
// required fields.
func UnmarshalEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.ValidateBasic(); err != nil {
		return env, err
	}
	return env, nil
}
