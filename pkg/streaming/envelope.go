package streaming

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/grwebhook/grwebhook/pkg/sale"
)

const (
	EventSaleRecorded = "sale.recorded"
	ContentType       = "application/json"
	AppID             = "grwebhook"
)

// Publishes a recorded sale to a downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, envelope *EventEnvelope) error
	Close()
}

type EventEnvelope struct {
	EventType string       `json:"event_type"`
	ID        string       `json:"id"`
	RequestID string       `json:"request_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Data      *sale.Record `json:"data"`
}

func NewSaleRecorded(requestID string, record *sale.Record, now time.Time) *EventEnvelope {
	return &EventEnvelope{
		EventType: EventSaleRecorded,
		ID:        uuid.NewString(),
		RequestID: requestID,
		Timestamp: now.UTC(),
		Data:      record,
	}
}

// Partition key for the sale, so updates to one sale stay ordered.
func (envelope EventEnvelope) Key() string {
	if envelope.Data == nil {
		return envelope.ID
	}
	return envelope.Data.Email
}

func (envelope EventEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(envelope)
}

func (envelope *EventEnvelope) Unmarshal(data []byte) error {
	return json.Unmarshal(data, envelope)
}
