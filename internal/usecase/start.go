package usecase

import (
	"context"
	"fmt"

	"github.com/Maycon01282/bot2/internal/domain/event"
	"github.com/Maycon01282/bot2/internal/sink"
)

type Start struct {
	messenger sink.Messenger
}

func NewStart(messenger sink.Messenger) *Start {
	return &Start{messenger: messenger}
}

func (uc *Start) Handle(ctx context.Context, ev event.Event) error {
	name := ev.Payload.SenderName
	if name == "" {
		name = "cliente"
	}
	return uc.messenger.SendMessage(ctx, ev.Payload.ChatID, fmt.Sprintf(msgHello, name), sink.MessageOptions{})
}
