package usecase

import (
	"log/slog"

	"github.com/Maycon01282/bot2/internal/domain/catalog"
	"github.com/Maycon01282/bot2/internal/router"
	"github.com/Maycon01282/bot2/internal/sink"
)

const (
	CmdStart    = "start"
	CmdProducts = "produtos"
	CmdBuy      = "comprar"

	PayPrefix = "pay_"
	BuyPrefix = "buy_"

	NotificationPayment = "payment"
)

type Deps struct {
	Messenger sink.Messenger
	Links     sink.PaymentLinks
	Payments  sink.Payments
	Publisher Publisher
	Catalog   catalog.Catalog
	Amounts   []int
	Logger    *slog.Logger

	// BotUsername limits commands to ones addressed to this bot.
	BotUsername string
}

// Routes builds the relay's route table. It is called once at startup.
func Routes(d Deps) *router.Table {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	checkout := NewCheckout(d.Messenger, d.Links, d.Catalog, d.Amounts, d.Logger)

	return router.NewRoutes().
		ForBot(d.BotUsername).
		Command(CmdStart, NewStart(d.Messenger)).
		Command(CmdProducts, NewListProducts(d.Messenger, d.Catalog)).
		Command(CmdBuy, router.HandlerFunc(checkout.HandleCommand)).
		Callback(PayPrefix, router.HandlerFunc(checkout.HandleAmount)).
		Callback(BuyPrefix, router.HandlerFunc(checkout.HandleProduct)).
		Notification(NotificationPayment, NewPaymentNotification(d.Payments, d.Messenger, d.Publisher, d.Logger)).
		Build()
}
