package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/Maycon01282/bot2/internal/sink"
)

type Config struct {
	Token string
	// APIServer overrides https://api.telegram.org, e.g. for a local Bot API server.
	APIServer string
}

// Messenger sends replies through the Telegram Bot API.
type Messenger struct {
	bot *telego.Bot
}

func NewMessenger(cfg Config) (*Messenger, error) {
	opts := []telego.BotOption{telego.WithDiscardLogger()}
	if cfg.APIServer != "" {
		opts = append(opts, telego.WithAPIServer(cfg.APIServer))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Messenger{bot: bot}, nil
}

func (m *Messenger) SendMessage(ctx context.Context, chatID int64, text string, opts sink.MessageOptions) error {
	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	}
	if markup := inlineKeyboard(opts.Keyboard); markup != nil {
		params.ReplyMarkup = markup
	}
	if opts.DisablePreview {
		params.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}

	if _, err := m.bot.SendMessage(ctx, params); err != nil {
		return sink.Wrap("send_message", err)
	}
	return nil
}

func (m *Messenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	err := m.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	return sink.Wrap("answer_callback", err)
}

// Username returns the bot's own @username via getMe.
func (m *Messenger) Username(ctx context.Context) (string, error) {
	me, err := m.bot.GetMe(ctx)
	if err != nil {
		return "", sink.Wrap("get_me", err)
	}
	return me.Username, nil
}

func inlineKeyboard(rows [][]sink.Button) *telego.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := &telego.InlineKeyboardMarkup{
		InlineKeyboard: make([][]telego.InlineKeyboardButton, 0, len(rows)),
	}
	for _, row := range rows {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, telego.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.CallbackData,
				URL:          b.URL,
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}
