package telegram

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local runs and dry
// runs. It logs what would be sent instead of calling Telegram.
type NoopBotAdapter struct {
	username string
	log      *zerolog.Logger
}

func NewNoopBotAdapter(username string, log *zerolog.Logger) *NoopBotAdapter {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &NoopBotAdapter{username: strings.TrimPrefix(username, "@"), log: log}
}

func (b *NoopBotAdapter) BotUsername() string { return b.username }

func (b *NoopBotAdapter) SendMessage(ctx context.Context, to adapter.ChatTarget, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Str("to", to.String()).Str("text", text).Int("button_rows", len(rows)).Msg("[noop-telegram] message")
	return nil
}

func (b *NoopBotAdapter) SendPhoto(ctx context.Context, to adapter.ChatTarget, fileID, caption string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Str("to", to.String()).Str("file_id", fileID).Str("caption", caption).Int("button_rows", len(rows)).Msg("[noop-telegram] photo")
	return nil
}

func (b *NoopBotAdapter) SendMediaGroup(ctx context.Context, to adapter.ChatTarget, photos []adapter.Photo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ids := make([]string, 0, len(photos))
	for _, p := range photos {
		ids = append(ids, p.FileID)
	}
	b.log.Info().Str("to", to.String()).Strs("file_ids", ids).Msg("[noop-telegram] media group")
	return nil
}

func (b *NoopBotAdapter) SendInvoice(ctx context.Context, chatID int64, inv adapter.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("payload", inv.Payload).Int("amount", inv.Amount).Str("currency", inv.Currency).Msg("[noop-telegram] invoice")
	return nil
}

func (b *NoopBotAdapter) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	b.log.Info().Str("query_id", queryID).Bool("ok", ok).Str("error", errorMessage).Msg("[noop-telegram] pre-checkout")
	return nil
}
