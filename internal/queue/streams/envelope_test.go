package streams

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeValidateBasic(t *testing.T) {
	valid := Envelope{
		EventID:   "evt-1",
		EventType: EventTypeAlertMatch,
		Data:      json.RawMessage(`{"alert_id": 1}`),
	}
	if err := valid.ValidateBasic(); err != nil {
		t.Fatalf("ValidateBasic: %v", err)
	}
	if valid.OccurredAt.IsZero() {
		t.Fatalf("ValidateBasic must default OccurredAt")
	}

	cases := []struct {
		name string
		env  Envelope
	}{
		{"missing event id", Envelope{EventType: "x", Data: json.RawMessage(`{}`)}},
		{"missing event type", Envelope{EventID: "e", Data: json.RawMessage(`{}`)}},
		{"missing data", Envelope{EventID: "e", EventType: "x"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.env.ValidateBasic(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestUnmarshalEnvelopeRoundTrip(t *testing.T) {
	src := Envelope{
		EventID:    "evt-9",
		EventType:  EventTypeAlertMatch,
		OccurredAt: time.Unix(1700000000, 0).UTC(),
		Data:       json.RawMessage(`{"alert_id": 7, "item_id": 42}`),
	}
	raw, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalEnvelope(raw)
	if err != nil {
		t.Fatalf("UnmarshalEnvelope: %v", err)
	}
	if got.EventID != src.EventID || got.EventType != src.EventType || !got.OccurredAt.Equal(src.OccurredAt) {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}

func TestUnmarshalEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalEnvelope([]byte("not json")); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
	if _, err := UnmarshalEnvelope([]byte(`{"event_id": "e"}`)); err == nil {
		t.Fatalf("expected validation error for incomplete envelope")
	}
}
