// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"
	"strconv"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// ChatTarget addresses either a chat by numeric ID or a public channel by "@username".
type ChatTarget struct {
	ID       int64
	Username string
}

func Chat(id int64) ChatTarget { return ChatTarget{ID: id} }

func (c ChatTarget) String() string {
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// Photo is one item of a media group.
type Photo struct {
	FileID  string
	Caption string
}

// Invoice describes a one-off Telegram Payments invoice.
type Invoice struct {
	Title       string
	Description string
	Label       string
	Payload     string
	Currency    string
	Amount      int // minor units
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, to ChatTarget, text string, rows [][]InlineButton) error
	SendPhoto(ctx context.Context, to ChatTarget, fileID, caption string, rows [][]InlineButton) error
	// SendMediaGroup sends an album. Albums cannot carry inline keyboards.
	SendMediaGroup(ctx context.Context, to ChatTarget, photos []Photo) error
	SendInvoice(ctx context.Context, chatID int64, inv Invoice) error
	AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error
	BotUsername() string
}
