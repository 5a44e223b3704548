package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maycon01282/bot2/internal/dedupe"
	"github.com/Maycon01282/bot2/internal/domain/catalog"
	"github.com/Maycon01282/bot2/internal/domain/event"
	"github.com/Maycon01282/bot2/internal/domain/payment"
	"github.com/Maycon01282/bot2/internal/router"
	"github.com/Maycon01282/bot2/internal/sink"
)

type sentMessage struct {
	ChatID int64
	Text   string
	Opts   sink.MessageOptions
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	answered []string
	err      error
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, opts sink.MessageOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text, Opts: opts})
	return nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, id)
	return nil
}

type fakeLinks struct {
	prefs []sink.Preference
	err   error
}

func (l *fakeLinks) CreatePaymentLink(_ context.Context, pref sink.Preference) (string, error) {
	l.prefs = append(l.prefs, pref)
	if l.err != nil {
		return "", l.err
	}
	return "https://mp.test/checkout/1", nil
}

type fakePayments struct {
	payments map[string]payment.Payment
	err      error
}

func (p *fakePayments) GetPayment(_ context.Context, id string) (payment.Payment, error) {
	if p.err != nil {
		return payment.Payment{}, p.err
	}
	pay, ok := p.payments[id]
	if !ok {
		return payment.Payment{}, sink.Wrap("get_payment", sink.ErrPaymentNotFound)
	}
	return pay, nil
}

type fakePublisher struct {
	msgs []event.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg event.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func command(id, text string) event.Event {
	return event.Event{
		Source:  event.SourceChat,
		Kind:    event.KindCommand,
		ID:      id,
		Payload: event.Payload{Text: text, ChatID: 4242, SenderName: "Ana"},
	}
}

func callback(id, data string) event.Event {
	return event.Event{
		Source:  event.SourceChat,
		Kind:    event.KindCallbackAction,
		ID:      id,
		Payload: event.Payload{Text: data, ChatID: 4242, CallbackID: "cb-" + id},
	}
}

func notification(id, paymentID string) event.Event {
	return event.Event{
		Source:  event.SourcePayment,
		Kind:    event.KindPaymentNotification,
		ID:      id,
		Payload: event.Payload{PaymentID: paymentID, NotificationType: NotificationPayment},
	}
}

func TestStart_GreetsSender(t *testing.T) {
	m := &fakeMessenger{}
	require.NoError(t, NewStart(m).Handle(context.Background(), command("1", "/start")))

	require.Len(t, m.sent, 1)
	assert.Equal(t, int64(4242), m.sent[0].ChatID)
	assert.Contains(t, m.sent[0].Text, "Olá Ana!")
}

func TestListProducts(t *testing.T) {
	m := &fakeMessenger{}
	require.NoError(t, NewListProducts(m, catalog.Default()).Handle(context.Background(), command("1", "/produtos")))

	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].Text, "1. Produto 1 - R$ 50,00")
	assert.Contains(t, m.sent[0].Text, "3. Produto 3 - R$ 100,00")
	require.Len(t, m.sent[0].Opts.Keyboard, 3)
	assert.Equal(t, "buy_2", m.sent[0].Opts.Keyboard[1][0].CallbackData)
}

func TestCheckout_CommandWithoutArgsOffersAmounts(t *testing.T) {
	m := &fakeMessenger{}
	links := &fakeLinks{}
	uc := NewCheckout(m, links, catalog.Default(), nil, discardLogger())

	require.NoError(t, uc.HandleCommand(context.Background(), command("1", "/comprar")))

	assert.Empty(t, links.prefs)
	require.Len(t, m.sent, 1)
	require.Len(t, m.sent[0].Opts.Keyboard, len(DefaultAmounts))
	assert.Equal(t, "pay_10", m.sent[0].Opts.Keyboard[0][0].CallbackData)
}

func TestCheckout_CommandWithProduct(t *testing.T) {
	m := &fakeMessenger{}
	links := &fakeLinks{}
	uc := NewCheckout(m, links, catalog.Default(), nil, discardLogger())

	require.NoError(t, uc.HandleCommand(context.Background(), command("77", "/comprar 2")))

	require.Len(t, links.prefs, 1)
	pref := links.prefs[0]
	assert.Equal(t, "Produto 2", pref.Items[0].Title)
	assert.Equal(t, 75.0, pref.Items[0].UnitPrice)
	assert.Equal(t, "chat:4242", pref.ExternalReference)
	assert.Equal(t, "chat:77", pref.IdempotencyKey)

	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].Text, "https://mp.test/checkout/1")
	assert.True(t, m.sent[0].Opts.DisablePreview)
}

func TestCheckout_UnknownProductIsAUserError(t *testing.T) {
	m := &fakeMessenger{}
	links := &fakeLinks{}
	uc := NewCheckout(m, links, catalog.Default(), nil, discardLogger())

	require.NoError(t, uc.HandleCommand(context.Background(), command("1", "/comprar 9")))
	assert.Empty(t, links.prefs)
	require.Len(t, m.sent, 1)
	assert.Equal(t, msgInvalidProduct, m.sent[0].Text)
}

func TestCheckout_AmountCallback(t *testing.T) {
	m := &fakeMessenger{}
	links := &fakeLinks{}
	uc := NewCheckout(m, links, catalog.Default(), nil, discardLogger())

	require.NoError(t, uc.HandleAmount(context.Background(), callback("5", "pay_50")))

	require.Len(t, links.prefs, 1)
	assert.Equal(t, 50.0, links.prefs[0].Items[0].UnitPrice)
	assert.Equal(t, []string{"cb-5"}, m.answered)
}

func TestCheckout_AmountCallbackRejectsUnofferedAmount(t *testing.T) {
	m := &fakeMessenger{}
	links := &fakeLinks{}
	uc := NewCheckout(m, links, catalog.Default(), nil, discardLogger())

	require.NoError(t, uc.HandleAmount(context.Background(), callback("5", "pay_33")))
	assert.Empty(t, links.prefs)
	require.Len(t, m.sent, 1)
	assert.Equal(t, msgInvalidAmount, m.sent[0].Text)
}

func TestCheckout_ProductCallback(t *testing.T) {
	m := &fakeMessenger{}
	links := &fakeLinks{}
	uc := NewCheckout(m, links, catalog.Default(), nil, discardLogger())

	require.NoError(t, uc.HandleProduct(context.Background(), callback("6", "buy_3")))
	require.Len(t, links.prefs, 1)
	assert.Equal(t, "Produto 3", links.prefs[0].Items[0].Title)
}

func TestCheckout_LinkFailureSendsFallbackAndFails(t *testing.T) {
	m := &fakeMessenger{}
	links := &fakeLinks{err: sink.Wrap("create_payment_link", errors.New("timeout"))}
	uc := NewCheckout(m, links, catalog.Default(), nil, discardLogger())

	err := uc.HandleCommand(context.Background(), command("1", "/comprar 1"))
	require.Error(t, err)
	var serr *sink.Error
	assert.ErrorAs(t, err, &serr)

	require.Len(t, m.sent, 1)
	assert.Equal(t, msgCheckoutFailed, m.sent[0].Text)
}

func TestPaymentNotification_ApprovedNotifiesBuyerAndPublishes(t *testing.T) {
	m := &fakeMessenger{}
	pub := &fakePublisher{}
	payments := &fakePayments{payments: map[string]payment.Payment{
		"987": {ID: "987", Status: payment.StatusApproved, ExternalReference: "chat:4242", Amount: 50},
	}}
	uc := NewPaymentNotification(payments, m, pub, discardLogger())

	require.NoError(t, uc.Handle(context.Background(), notification("n-1", "987")))

	require.Len(t, m.sent, 1)
	assert.Equal(t, int64(4242), m.sent[0].ChatID)
	assert.Contains(t, m.sent[0].Text, "987 aprovado")

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, event.TypePaymentStatusChanged, msg.Type)
	assert.Equal(t, "987", msg.Key)
	assert.Equal(t, "n-1", msg.EventID)
	var payload payment.StatusChanged
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "approved", payload.Status)
	assert.Equal(t, "n-1", payload.NotificationID)
}

func TestPaymentNotification_MessageIDIsStablePerNotification(t *testing.T) {
	pub := &fakePublisher{}
	payments := &fakePayments{payments: map[string]payment.Payment{
		"987": {ID: "987", Status: payment.StatusPending},
	}}
	uc := NewPaymentNotification(payments, &fakeMessenger{}, pub, discardLogger())

	require.NoError(t, uc.Handle(context.Background(), notification("n-1", "987")))
	require.NoError(t, uc.Handle(context.Background(), notification("n-1", "987")))
	require.NoError(t, uc.Handle(context.Background(), notification("n-2", "987")))

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, pub.msgs[0].ID, pub.msgs[1].ID)
	assert.NotEqual(t, pub.msgs[0].ID, pub.msgs[2].ID)
}

func TestPaymentNotification_UnknownPaymentIsAcknowledged(t *testing.T) {
	m := &fakeMessenger{}
	pub := &fakePublisher{}
	uc := NewPaymentNotification(&fakePayments{}, m, pub, discardLogger())

	require.NoError(t, uc.Handle(context.Background(), notification("n-1", "missing")))
	assert.Empty(t, m.sent)
	assert.Empty(t, pub.msgs)
}

func TestPaymentNotification_ProviderErrorFails(t *testing.T) {
	uc := NewPaymentNotification(&fakePayments{err: errors.New("502")}, &fakeMessenger{}, nil, discardLogger())
	assert.Error(t, uc.Handle(context.Background(), notification("n-1", "987")))
}

func TestPaymentNotification_PublishErrorFails(t *testing.T) {
	payments := &fakePayments{payments: map[string]payment.Payment{"1": {ID: "1", Status: payment.StatusApproved}}}
	uc := NewPaymentNotification(payments, &fakeMessenger{}, &fakePublisher{err: errors.New("broker down")}, discardLogger())
	assert.Error(t, uc.Handle(context.Background(), notification("n-1", "1")))
}

func TestRoutes_RedeliveredPaymentNotificationNotifiesOnce(t *testing.T) {
	m := &fakeMessenger{}
	payments := &fakePayments{payments: map[string]payment.Payment{
		"987": {ID: "987", Status: payment.StatusApproved, ExternalReference: "chat:4242"},
	}}
	table := Routes(Deps{
		Messenger: m,
		Links:     &fakeLinks{},
		Payments:  payments,
		Catalog:   catalog.Default(),
		Logger:    discardLogger(),
	})
	r := router.New(table, dedupe.NewMemoryStore(0), router.WithLogger(discardLogger()))

	for i := 0; i < 3; i++ {
		_, err := r.Route(context.Background(), notification("n-1", "987"))
		require.NoError(t, err)
	}
	assert.Len(t, m.sent, 1)
}

func TestRoutes_UnknownCommandIsUnroutable(t *testing.T) {
	table := Routes(Deps{Messenger: &fakeMessenger{}, Catalog: catalog.Default(), Logger: discardLogger()})
	r := router.New(table, dedupe.NewMemoryStore(0), router.WithLogger(discardLogger()))

	outcome, err := r.Route(context.Background(), command("1", "/unknown"))
	assert.ErrorIs(t, err, router.ErrUnroutable)
	assert.Equal(t, router.OutcomeUnroutable, outcome)
}

func TestChatReference(t *testing.T) {
	id, ok := ParseChatReference(ChatReference(-100123))
	assert.True(t, ok)
	assert.Equal(t, int64(-100123), id)

	_, ok = ParseChatReference("order:1")
	assert.False(t, ok)
	_, ok = ParseChatReference("chat:abc")
	assert.False(t, ok)
}
