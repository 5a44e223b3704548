package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Maycon01282/bot2/internal/domain/catalog"
	"github.com/Maycon01282/bot2/internal/domain/event"
	"github.com/Maycon01282/bot2/internal/sink"
)

type ListProducts struct {
	messenger sink.Messenger
	catalog   catalog.Catalog
}

func NewListProducts(messenger sink.Messenger, c catalog.Catalog) *ListProducts {
	return &ListProducts{messenger: messenger, catalog: c}
}

func (uc *ListProducts) Handle(ctx context.Context, ev event.Event) error {
	if len(uc.catalog) == 0 {
		return uc.messenger.SendMessage(ctx, ev.Payload.ChatID, msgNoProducts, sink.MessageOptions{})
	}

	var b strings.Builder
	b.WriteString(msgProductsHeader)
	keyboard := make([][]sink.Button, 0, len(uc.catalog))
	for _, p := range uc.catalog {
		fmt.Fprintf(&b, "%d. %s - %s\n", p.ID, p.Name, formatBRL(p.Price))
		keyboard = append(keyboard, []sink.Button{{
			Text:         fmt.Sprintf("%s - %s", p.Name, formatBRL(p.Price)),
			CallbackData: BuyPrefix + strconv.Itoa(p.ID),
		}})
	}
	b.WriteString(msgProductsFooter)

	return uc.messenger.SendMessage(ctx, ev.Payload.ChatID, b.String(), sink.MessageOptions{Keyboard: keyboard})
}

// formatBRL renders 1234.5 as "R$ 1234,50".
func formatBRL(v float64) string {
	return "R$ " + strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
}
