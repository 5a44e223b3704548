package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// chatUpdate is the subset of the Telegram Update object the relay accepts.
// Pointers distinguish absent fields from zero values.
type chatUpdate struct {
	UpdateID      *int64         `json:"update_id"`
	Message       *chatMessage   `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type chatMessage struct {
	MessageID int64     `json:"message_id"`
	From      *chatUser `json:"from"`
	Chat      *chat     `json:"chat"`
	Text      string    `json:"text"`
}

type chatUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type chat struct {
	ID int64 `json:"id"`
}

type callbackQuery struct {
	ID      string       `json:"id"`
	From    *chatUser    `json:"from"`
	Message *chatMessage `json:"message"`
	Data    string       `json:"data"`
}

// paymentNotification is the Mercado Pago webhook body.
type paymentNotification struct {
	ID     flexID `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   *struct {
		ID flexID `json:"id"`
	} `json:"data"`
}

// flexID accepts both JSON strings and numbers; the provider sends either
// depending on the notification version.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}
