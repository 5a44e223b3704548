package usecase

import (
	"strconv"
	"strings"
)

const chatReferencePrefix = "chat:"

// ChatReference is stored as the preference external_reference so payment
// notifications can be traced back to the buyer's chat.
func ChatReference(chatID int64) string {
	return chatReferencePrefix + strconv.FormatInt(chatID, 10)
}

func ParseChatReference(ref string) (int64, bool) {
	raw, ok := strings.CutPrefix(ref, chatReferencePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
