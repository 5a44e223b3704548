// Package sink defines the outbound effects handlers may trigger. Every
// implementation must report failures; the router's retry decision depends
// on it.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/Maycon01282/bot2/internal/domain/payment"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Error wraps a failed outbound call.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("sink %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

type Button struct {
	Text         string
	CallbackData string
	URL          string
}

type MessageOptions struct {
	Keyboard [][]Button
	// DisablePreview suppresses link previews, used for payment links.
	DisablePreview bool
}

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts MessageOptions) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type Item struct {
	Title     string
	Quantity  int
	UnitPrice float64
}

// Preference describes a checkout to create a payment link for.
type Preference struct {
	Items             []Item
	ExternalReference string
	// IdempotencyKey lets the provider collapse retried creations.
	IdempotencyKey string
}

type PaymentLinks interface {
	CreatePaymentLink(ctx context.Context, pref Preference) (string, error)
}

type Payments interface {
	// GetPayment returns ErrPaymentNotFound for unknown ids.
	GetPayment(ctx context.Context, id string) (payment.Payment, error)
}
