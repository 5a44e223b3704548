package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Maycon01282/bot2/internal/domain/catalog"
	"github.com/Maycon01282/bot2/internal/domain/event"
	"github.com/Maycon01282/bot2/internal/router"
	"github.com/Maycon01282/bot2/internal/sink"
)

// DefaultAmounts are the quick-pay options offered by /comprar without a
// product number.
var DefaultAmounts = []int{10, 20, 50, 100}

// Checkout turns a purchase intent into a payment link sent to the chat.
type Checkout struct {
	messenger sink.Messenger
	links     sink.PaymentLinks
	catalog   catalog.Catalog
	amounts   []int
	logger    *slog.Logger
}

func NewCheckout(messenger sink.Messenger, links sink.PaymentLinks, c catalog.Catalog, amounts []int, logger *slog.Logger) *Checkout {
	if len(amounts) == 0 {
		amounts = DefaultAmounts
	}
	return &Checkout{
		messenger: messenger,
		links:     links,
		catalog:   c,
		amounts:   amounts,
		logger:    logger,
	}
}

// HandleCommand serves "/comprar [n]".
func (uc *Checkout) HandleCommand(ctx context.Context, ev event.Event) error {
	args := router.CommandArgs(ev.Payload.Text)
	if len(args) == 0 {
		return uc.messenger.SendMessage(ctx, ev.Payload.ChatID, msgChooseAmount, sink.MessageOptions{
			Keyboard: uc.amountKeyboard(),
		})
	}

	p, err := uc.catalog.Lookup(args[0])
	if err != nil {
		return uc.messenger.SendMessage(ctx, ev.Payload.ChatID, msgInvalidProduct, sink.MessageOptions{})
	}
	return uc.sendLink(ctx, ev, productItem(p))
}

// HandleProduct serves "buy_<n>" callbacks from the product list.
func (uc *Checkout) HandleProduct(ctx context.Context, ev event.Event) error {
	defer uc.answer(ctx, ev)

	p, err := uc.catalog.Lookup(strings.TrimPrefix(ev.Payload.Text, BuyPrefix))
	if err != nil {
		return uc.messenger.SendMessage(ctx, ev.Payload.ChatID, msgInvalidProduct, sink.MessageOptions{})
	}
	return uc.sendLink(ctx, ev, productItem(p))
}

// HandleAmount serves "pay_<amount>" callbacks from the amount keyboard.
func (uc *Checkout) HandleAmount(ctx context.Context, ev event.Event) error {
	defer uc.answer(ctx, ev)

	amount, err := strconv.Atoi(strings.TrimPrefix(ev.Payload.Text, PayPrefix))
	if err != nil || !uc.allowed(amount) {
		return uc.messenger.SendMessage(ctx, ev.Payload.ChatID, msgInvalidAmount, sink.MessageOptions{
			Keyboard: uc.amountKeyboard(),
		})
	}
	return uc.sendLink(ctx, ev, sink.Item{
		Title:     "Pagamento " + formatBRL(float64(amount)),
		Quantity:  1,
		UnitPrice: float64(amount),
	})
}

func (uc *Checkout) sendLink(ctx context.Context, ev event.Event, item sink.Item) error {
	chatID := ev.Payload.ChatID
	link, err := uc.links.CreatePaymentLink(ctx, sink.Preference{
		Items:             []sink.Item{item},
		ExternalReference: ChatReference(chatID),
		IdempotencyKey:    string(ev.Source) + ":" + ev.ID,
	})
	if err != nil {
		if ferr := uc.messenger.SendMessage(ctx, chatID, msgCheckoutFailed, sink.MessageOptions{}); ferr != nil {
			uc.logger.Warn("failed to send checkout fallback", "chat_id", chatID, "error", ferr)
		}
		return fmt.Errorf("create payment link: %w", err)
	}

	return uc.messenger.SendMessage(ctx, chatID, fmt.Sprintf(msgPaymentLink, link), sink.MessageOptions{
		Keyboard:       [][]sink.Button{{{Text: btnPay, URL: link}}},
		DisablePreview: true,
	})
}

// answer stops the client's loading spinner. Failure is not fatal: the
// query may simply have expired.
func (uc *Checkout) answer(ctx context.Context, ev event.Event) {
	if ev.Payload.CallbackID == "" {
		return
	}
	if err := uc.messenger.AnswerCallback(ctx, ev.Payload.CallbackID, ""); err != nil {
		uc.logger.Warn("failed to answer callback", "callback_id", ev.Payload.CallbackID, "error", err)
	}
}

func (uc *Checkout) allowed(amount int) bool {
	for _, a := range uc.amounts {
		if a == amount {
			return true
		}
	}
	return false
}

func (uc *Checkout) amountKeyboard() [][]sink.Button {
	rows := make([][]sink.Button, 0, len(uc.amounts))
	for _, a := range uc.amounts {
		rows = append(rows, []sink.Button{{
			Text:         formatBRL(float64(a)),
			CallbackData: PayPrefix + strconv.Itoa(a),
		}})
	}
	return rows
}

func productItem(p catalog.Product) sink.Item {
	return sink.Item{Title: p.Name, Quantity: 1, UnitPrice: p.Price}
}
