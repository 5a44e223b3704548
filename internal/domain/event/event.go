package event

import "time"

// Source identifies which untrusted sender produced an Event.
type Source string

const (
	SourceChat    Source = "chat"
	SourcePayment Source = "payment"
)

type Kind string

const (
	KindCommand             Kind = "command"
	KindCallbackAction      Kind = "callback_action"
	KindPaymentNotification Kind = "payment_notification"
)

// Event is one normalized inbound callback. (Source, ID) identifies it;
// redeliveries of the same pair must not produce a second side effect.
type Event struct {
	Source     Source    `json:"source"`
	Kind       Kind      `json:"kind"`
	ID         string    `json:"id"`
	Payload    Payload   `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// Payload carries source-specific data. Text is the raw command text or
// callback data exactly as the chat platform delivered it.
type Payload struct {
	Text       string `json:"text,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	SenderID   int64  `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	CallbackID string `json:"callback_id,omitempty"`

	PaymentID        string `json:"payment_id,omitempty"`
	NotificationType string `json:"notification_type,omitempty"`
	Action           string `json:"action,omitempty"`
}
