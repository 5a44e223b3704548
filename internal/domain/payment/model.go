package payment

import "time"

const (
	StatusApproved   = "approved"
	StatusPending    = "pending"
	StatusInProcess  = "in_process"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusChargeback = "charged_back"
)

// Payment is the subset of a provider payment the relay reacts to.
type Payment struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	StatusDetail      string    `json:"status_detail"`
	ExternalReference string    `json:"external_reference"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// StatusChanged is the payload of event.TypePaymentStatusChanged.
type StatusChanged struct {
	PaymentID         string  `json:"payment_id"`
	Status            string  `json:"status"`
	ExternalReference string  `json:"external_reference,omitempty"`
	Amount            float64 `json:"amount"`
	NotificationID    string  `json:"notification_id"`
}
