package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const TypePaymentStatusChanged = "payment.status_changed"

// Message is what the relay publishes to Kafka once a payment notification
// was handled. Key groups messages of one payment on the same partition.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Source    Source          `json:"source"`
	EventID   string          `json:"event_id"`
	Relay     string          `json:"relay"`
	HandledAt time.Time       `json:"handled_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NewMessage builds the message for handled event ev. The ID is a UUIDv5 of
// the event's dedupe key, so a redelivered event republishes under the same ID.
func NewMessage(ev Event, typ, key, relay string, payload json.RawMessage) Message {
	return Message{
		ID:        MessageID(ev),
		Type:      typ,
		Key:       key,
		Source:    ev.Source,
		EventID:   ev.ID,
		Relay:     relay,
		HandledAt: time.Now().UTC(),
		Payload:   payload,
	}
}

func MessageID(ev Event) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(ev.Source)+":"+ev.ID)).String()
}
