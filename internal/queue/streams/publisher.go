package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/gamescout/internal/alerts"
)

// Publisher wraps Redis Stream publishing.
type Publisher struct {
	client *redis.Client
	maxLen int64
}

// NewPublisher creates a Publisher. maxLen, when positive, caps stream
// length approximately so an unconsumed stream cannot grow unbounded.
func NewPublisher(client *redis.Client, maxLen int64) *Publisher {
	return &Publisher{client: client, maxLen: maxLen}
}

// Publish validates the envelope and appends it to the given stream,
// returning the assigned stream ID.
func (p *Publisher) Publish(ctx context.Context, stream string, envelope Envelope) (string, error) {
	if stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if envelope.EventID == "" {
		envelope.EventID = uuid.NewString()
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}
	if err := envelope.ValidateBasic(); err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"event_id":    envelope.EventID,
			"event_type":  envelope.EventType,
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
			"data":        string(envelope.Data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// MatchPayload is the data carried by alert.match.recorded events.
type MatchPayload struct {
	AlertID    int64  `json:"alert_id"`
	AlertTitle string `json:"alert_title"`
	ItemID     int64  `json:"item_id"`
	ItemTitle  string `json:"item_title"`
	ItemURL    string `json:"item_url"`
	Price      string `json:"price"`
	Currency   string `json:"currency"`
	Reason     string `json:"match_reason"`
}

// MatchPublisher adapts Publisher to the alert matcher's collaborator
// interface.
type MatchPublisher struct {
	pub    *Publisher
	stream string
}

// NewMatchPublisher wires a Publisher to the alert-match stream. stream
// defaults to StreamAlertMatch.
func NewMatchPublisher(pub *Publisher, stream string) *MatchPublisher {
	if stream == "" {
		stream = StreamAlertMatch
	}
	return &MatchPublisher{pub: pub, stream: stream}
}

// PublishMatch implements alerts.MatchPublisher.
func (m *MatchPublisher) PublishMatch(ctx context.Context, match alerts.Match) error {
	payload := MatchPayload{
		AlertID:    match.AlertID,
		AlertTitle: match.AlertTitle,
		ItemID:     match.Item.ID,
		ItemTitle:  match.Item.Title,
		ItemURL:    match.Item.URL,
		Price:      match.Item.PriceAmount.StringFixed(2),
		Currency:   match.Item.PriceCurrency,
		Reason:     match.Reason,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal match payload: %w", err)
	}
	_, err = m.pub.Publish(ctx, m.stream, Envelope{
		EventType: EventTypeAlertMatch,
		Data:      data,
	})
	return err
}
