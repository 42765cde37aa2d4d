package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope of a storefront message. Every event belongs to one
// shopper session, whose id is also the partition key.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	SessionID     string          `json:"session_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewSessionEvent wraps payload in an envelope for sessionID. The event type
// is the topic name.
func NewSessionEvent(topic, sessionID string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       topic,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}
