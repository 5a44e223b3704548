package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Maycon01282/bot2/internal/domain/event"
	"github.com/Maycon01282/bot2/internal/domain/payment"
	"github.com/Maycon01282/bot2/internal/sink"
)

const relayName = "chatpay-relay"

// Publisher forwards handled payment updates to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, msg event.Message) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, event.Message) error { return nil }

// PaymentNotification resolves a provider notification to the payment it
// refers to, publishes the status and tells the buyer about final outcomes.
type PaymentNotification struct {
	payments  sink.Payments
	messenger sink.Messenger
	publisher Publisher
	logger    *slog.Logger
}

func NewPaymentNotification(payments sink.Payments, messenger sink.Messenger, publisher Publisher, logger *slog.Logger) *PaymentNotification {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &PaymentNotification{
		payments:  payments,
		messenger: messenger,
		publisher: publisher,
		logger:    logger,
	}
}

func (uc *PaymentNotification) Handle(ctx context.Context, ev event.Event) error {
	p, err := uc.payments.GetPayment(ctx, ev.Payload.PaymentID)
	if errors.Is(err, sink.ErrPaymentNotFound) {
		// Stale or foreign notification; redelivery would not change that.
		uc.logger.Warn("payment not found, acknowledging notification",
			"payment_id", ev.Payload.PaymentID, "event_id", ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get payment %s: %w", ev.Payload.PaymentID, err)
	}

	msg, err := statusMessage(ev, p)
	if err != nil {
		return err
	}
	if err := uc.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish payment status: %w", err)
	}

	uc.logger.Info("payment status received", "payment_id", p.ID, "status", p.Status, "event_id", ev.ID)

	chatID, ok := ParseChatReference(p.ExternalReference)
	if !ok {
		return nil
	}
	switch p.Status {
	case payment.StatusApproved:
		return uc.messenger.SendMessage(ctx, chatID, fmt.Sprintf(msgPaymentApproved, p.ID), sink.MessageOptions{})
	case payment.StatusRejected, payment.StatusCancelled:
		return uc.messenger.SendMessage(ctx, chatID, fmt.Sprintf(msgPaymentRejected, p.ID, p.StatusDetail), sink.MessageOptions{})
	}
	return nil
}

func statusMessage(ev event.Event, p payment.Payment) (event.Message, error) {
	payload, err := json.Marshal(payment.StatusChanged{
		PaymentID:         p.ID,
		Status:            p.Status,
		ExternalReference: p.ExternalReference,
		Amount:            p.Amount,
		NotificationID:    ev.ID,
	})
	if err != nil {
		return event.Message{}, fmt.Errorf("marshal payment status: %w", err)
	}

	return event.NewMessage(ev, event.TypePaymentStatusChanged, p.ID, relayName, payload), nil
}
