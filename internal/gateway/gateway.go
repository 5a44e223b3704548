// Package gateway turns raw webhook bodies into validated events. It checks
// shape and authenticity only; whether an event can be handled is decided by
// the router.
package gateway

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Maycon01282/bot2/internal/domain/event"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnauthenticated  = errors.New("unauthenticated callback")
)

const (
	HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"
	HeaderSignature      = "X-Signature"
	HeaderRequestID      = "X-Request-Id"

	notificationTypePayment = "payment"
)

type Gateway struct {
	telegramSecret string
	paymentSecret  string
	now            func() time.Time
}

type Option func(*Gateway)

// WithTelegramSecret requires chat updates to carry the secret token
// registered with setWebhook.
func WithTelegramSecret(secret string) Option {
	return func(g *Gateway) { g.telegramSecret = secret }
}

// WithPaymentSecret requires payment notifications to carry a valid
// x-signature computed with secret.
func WithPaymentSecret(secret string) Option {
	return func(g *Gateway) { g.paymentSecret = secret }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func New(opts ...Option) *Gateway {
	g := &Gateway{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IngestChatUpdate validates a chat platform update. It returns a nil event
// and nil error for well-formed updates that carry nothing to route, such as
// plain text messages.
func (g *Gateway) IngestChatUpdate(body []byte, header http.Header) (*event.Event, error) {
	if g.telegramSecret != "" && !equalSecret(header.Get(HeaderTelegramSecret), g.telegramSecret) {
		return nil, fmt.Errorf("%w: secret token mismatch", ErrUnauthenticated)
	}

	var upd chatUpdate
	if err := decode(body, &upd); err != nil {
		return nil, err
	}
	if upd.UpdateID == nil {
		return nil, malformed("missing update_id")
	}
	if (upd.Message == nil) == (upd.CallbackQuery == nil) {
		return nil, malformed("update must carry exactly one of message, callback_query")
	}

	ev := &event.Event{
		Source:     event.SourceChat,
		ID:         strconv.FormatInt(*upd.UpdateID, 10),
		ReceivedAt: g.now(),
	}

	if m := upd.Message; m != nil {
		if m.Chat == nil {
			return nil, malformed("message without chat")
		}
		if !isCommand(m.Text) {
			return nil, nil
		}
		ev.Kind = event.KindCommand
		ev.Payload = event.Payload{Text: m.Text, ChatID: m.Chat.ID}
		fillSender(&ev.Payload, m.From)
		return ev, nil
	}

	cq := upd.CallbackQuery
	if cq.ID == "" {
		return nil, malformed("callback_query without id")
	}
	if cq.Data == "" {
		return nil, malformed("callback_query without data")
	}
	ev.Kind = event.KindCallbackAction
	ev.Payload = event.Payload{Text: cq.Data, CallbackID: cq.ID}
	if cq.Message != nil && cq.Message.Chat != nil {
		ev.Payload.ChatID = cq.Message.Chat.ID
	}
	fillSender(&ev.Payload, cq.From)
	if ev.Payload.ChatID == 0 {
		// Inline-mode callbacks have no message; reply privately.
		ev.Payload.ChatID = ev.Payload.SenderID
	}
	return ev, nil
}

// IngestPaymentNotification validates a payment provider notification. It
// never checks whether the referenced payment exists.
func (g *Gateway) IngestPaymentNotification(body []byte, header http.Header) (*event.Event, error) {
	var n paymentNotification
	if err := decode(body, &n); err != nil {
		return nil, err
	}
	if n.Type != notificationTypePayment {
		return nil, malformed(fmt.Sprintf("unsupported notification type %q", n.Type))
	}
	if n.Data == nil || n.Data.ID == "" {
		return nil, malformed("missing data.id")
	}
	paymentID := string(n.Data.ID)

	if g.paymentSecret != "" {
		if err := verifySignature(g.paymentSecret, paymentID, header); err != nil {
			return nil, err
		}
	}

	id := string(n.ID)
	if id == "" {
		id = paymentID
	}
	return &event.Event{
		Source: event.SourcePayment,
		Kind:   event.KindPaymentNotification,
		ID:     id,
		Payload: event.Payload{
			PaymentID:        paymentID,
			NotificationType: n.Type,
			Action:           n.Action,
		},
		ReceivedAt: g.now(),
	}, nil
}

func decode(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return malformed("empty body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, reason)
}

func isCommand(text string) bool {
	return len(text) > 1 && text[0] == '/' && !strings.ContainsAny(text[1:2], " \t\n/")
}

func fillSender(p *event.Payload, u *chatUser) {
	if u == nil {
		return
	}
	p.SenderID = u.ID
	p.SenderName = u.FirstName
	if p.SenderName == "" {
		p.SenderName = u.Username
	}
}

func equalSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
