package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-listing-bot/internal/domain/ports/adapter"
	"telegram-listing-bot/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes maps command names (without "/") to handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":  r.handleStartCommand,
		"help":   r.handleHelpCommand,
		"whoami": r.handleWhoAmICommand,

		"admin":    r.adminOnly(r.handleAdminCommand),
		"add":      r.adminOnly(r.handleAddCommand),
		"listings": r.adminOnly(r.handleListingsCommand),
		"delete":   r.adminOnly(r.handleDeleteCommand),
		"del":      r.adminOnly(r.handleDeleteCommand),
		"publish":  r.adminOnly(r.handlePublishCommand),
		"dbg":      r.adminOnly(r.handleDebugCommand),
		"done":     r.adminOnly(r.handleDoneCommand),
		"apitoken": r.adminOnly(r.handleAPITokenCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.isAdmin(message.From.ID) {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			r.log.Warn().Int64("tg_id", message.From.ID).Str("command", message.Command()).Msg("admin command refused")
			return r.send(ctx, message.Chat.ID, r.translator.T("unauthorized"), nil)
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

// handleStartCommand greets the buyer; "/start A101" (the channel deep link) continues to the lookup.
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.facade.Purchase.Welcome(ctx, message.Chat.ID, message.CommandArguments())
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.send(ctx, message.Chat.ID, r.facade.HelpText(message.From.ID), nil)
}

func (r *RealTelegramBotAdapter) handleWhoAmICommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.send(ctx, message.Chat.ID, r.translator.T("whoami", message.From.ID), nil)
}

func (r *RealTelegramBotAdapter) handleAdminCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendAdminPanel(ctx, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) sendAdminPanel(ctx context.Context, chatID int64) error {
	rows := [][]adapter.InlineButton{
		{{Text: r.translator.T("btn_admin_list"), Data: cbAdminList}},
		{{Text: r.translator.T("btn_admin_add_hint"), Data: cbAdminAddHint}},
		{{Text: r.translator.T("btn_admin_del_hint"), Data: cbAdminDelHint}},
		{{Text: r.translator.T("btn_admin_whoami"), Data: cbAdminWhoAmI}},
	}
	if r.tokens != nil {
		rows = append(rows, []adapter.InlineButton{{Text: r.translator.T("btn_admin_token"), Data: cbAdminToken}})
	}
	return r.send(ctx, chatID, r.translator.T("admin_panel"), rows)
}

func (r *RealTelegramBotAdapter) handleAddCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.facade.AddFlow.Start(ctx, message.Chat.ID, message.From.ID, firstArg(message))
}

func (r *RealTelegramBotAdapter) handleListingsCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.facade.Listings.SendList(ctx, message.Chat.ID, message.From.ID)
}

func (r *RealTelegramBotAdapter) handleDeleteCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.facade.Listings.AskDelete(ctx, message.Chat.ID, message.From.ID, firstArg(message))
}

func (r *RealTelegramBotAdapter) handlePublishCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.facade.Publish.PublishAndReport(ctx, message.Chat.ID, message.From.ID, firstArg(message))
}

func (r *RealTelegramBotAdapter) handleDebugCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.facade.AddFlow.Debug(ctx, message.Chat.ID, message.From.ID)
}

func (r *RealTelegramBotAdapter) handleDoneCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.facade.AddFlow.Finish(ctx, message.Chat.ID, message.From.ID)
}

func (r *RealTelegramBotAdapter) handleAPITokenCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.issueAPIToken(ctx, message.Chat.ID, message.From.ID)
}

func (r *RealTelegramBotAdapter) issueAPIToken(ctx context.Context, chatID, userID int64) error {
	if r.tokens == nil {
		return r.send(ctx, chatID, r.translator.T("apitoken_disabled"), nil)
	}
	tok, err := r.tokens.Mint(strconv.FormatInt(userID, 10))
	if err != nil {
		return err
	}
	r.log.Info().Int64("tg_id", userID).Dur("ttl", r.tokens.TTL()).Msg("admin api token issued")
	return r.send(ctx, chatID, r.translator.T("apitoken_issued", r.tokens.TTL().String(), tok), nil)
}

// firstArg returns the first word after the command, "" when there is none.
func firstArg(message *tgbotapi.Message) string {
	fields := strings.Fields(message.CommandArguments())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
