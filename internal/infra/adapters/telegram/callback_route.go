package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-listing-bot/internal/domain/flow"
	"telegram-listing-bot/internal/infra/metrics"
	"telegram-listing-bot/internal/usecase"
)

const (
	cbAdminList    = "adm:list"
	cbAdminAddHint = "adm:add_hint"
	cbAdminDelHint = "adm:del_hint"
	cbAdminWhoAmI  = "adm:whoami"
	cbAdminToken   = "adm:token"
)

// callback is the part of a CallbackQuery the handlers need.
type callback struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Data      string
}

type cbHandler func(ctx context.Context, cb callback) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// cbRoutes holds exact-match callbacks.
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	routes := map[string]cbHandler{
		usecase.CBGetContact: r.getContactCBRoute,
		usecase.CBRestart:    r.adminOnlyCB(r.restartCBRoute),
		usecase.CBCancelDel:  r.adminOnlyCB(r.cancelDeleteCBRoute),

		cbAdminList:    r.adminOnlyCB(r.adminListCBRoute),
		cbAdminAddHint: r.adminOnlyCB(r.adminHintCBRoute("admin_add_hint")),
		cbAdminDelHint: r.adminOnlyCB(r.adminHintCBRoute("admin_del_hint")),
		cbAdminWhoAmI:  r.adminOnlyCB(r.whoAmICBRoute),
		cbAdminToken:   r.adminOnlyCB(r.apiTokenCBRoute),
	}
	for _, a := range []flow.Action{
		flow.ActionTextOK, flow.ActionTextEdit,
		flow.ActionHasLink, flow.ActionNoLink,
		flow.ActionPhotosYes, flow.ActionPhotosNo,
		flow.ActionFinish, flow.ActionCancel,
	} {
		routes[string(a)] = r.adminOnlyCB(r.flowActionCBRoute)
	}
	return routes
}

// cbPrefixRoutes holds callbacks that carry a listing or delivery ID after the prefix.
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: usecase.CBConfirmPrefix, Fn: r.confirmPrefixCBRoute},
		{Prefix: usecase.CBPayPrefix, Fn: r.payPrefixCBRoute},
		{Prefix: usecase.CBRedeliverPrefix, Fn: r.redeliverPrefixCBRoute},
		{Prefix: usecase.CBPublishPrefix, Fn: r.adminOnlyCB(r.publishPrefixCBRoute)},
		{Prefix: usecase.CBConfirmDelPrefix, Fn: r.adminOnlyCB(r.confirmDeletePrefixCBRoute)},
	}
}

func (r *RealTelegramBotAdapter) adminOnlyCB(next cbHandler) cbHandler {
	return func(ctx context.Context, cb callback) error {
		name := "cb:" + cb.Data
		if i := strings.IndexByte(cb.Data, ':'); i >= 0 && !strings.HasPrefix(cb.Data, "adm:") {
			name = "cb:" + cb.Data[:i+1]
		}
		if !r.isAdmin(cb.UserID) {
			metrics.IncAdminCommand(name, "unauthorized")
			return r.send(ctx, cb.ChatID, r.translator.T("unauthorized"), nil)
		}
		metrics.IncAdminCommand(name, "authorized")
		return next(ctx, cb)
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	// stop the button spinner
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	cb := callback{UserID: query.From.ID, Data: strings.TrimSpace(query.Data)}
	if query.Message != nil && query.Message.Chat != nil {
		cb.ChatID = query.Message.Chat.ID
		cb.MessageID = query.Message.MessageID
	} else {
		cb.ChatID = query.From.ID
	}

	if fn, ok := r.cbRoutes()[cb.Data]; ok {
		return r.report(ctx, cb.ChatID, fn(ctx, cb))
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(cb.Data, pr.Prefix) {
			return r.report(ctx, cb.ChatID, pr.Fn(ctx, cb))
		}
	}
	r.log.Warn().Str("data", cb.Data).Int64("tg_id", cb.UserID).Msg("unknown callback data")
	return nil
}

// ---- buyer ----

func (r *RealTelegramBotAdapter) getContactCBRoute(ctx context.Context, cb callback) error {
	return r.facade.Purchase.AskID(ctx, cb.ChatID)
}

func (r *RealTelegramBotAdapter) confirmPrefixCBRoute(ctx context.Context, cb callback) error {
	return r.facade.Purchase.Confirm(ctx, cb.ChatID, strings.TrimPrefix(cb.Data, usecase.CBConfirmPrefix))
}

func (r *RealTelegramBotAdapter) payPrefixCBRoute(ctx context.Context, cb callback) error {
	return r.facade.Purchase.Pay(ctx, cb.ChatID, cb.UserID, strings.TrimPrefix(cb.Data, usecase.CBPayPrefix))
}

func (r *RealTelegramBotAdapter) redeliverPrefixCBRoute(ctx context.Context, cb callback) error {
	return r.facade.Purchase.Redeliver(ctx, cb.ChatID, cb.UserID, strings.TrimPrefix(cb.Data, usecase.CBRedeliverPrefix))
}

// ---- admin ----

func (r *RealTelegramBotAdapter) flowActionCBRoute(ctx context.Context, cb callback) error {
	action, ok := flow.ParseAction(cb.Data)
	if !ok {
		return nil
	}
	return r.facade.AddFlow.HandleAction(ctx, cb.ChatID, cb.UserID, action)
}

func (r *RealTelegramBotAdapter) restartCBRoute(ctx context.Context, cb callback) error {
	return r.facade.AddFlow.Restart(ctx, cb.ChatID, cb.UserID)
}

func (r *RealTelegramBotAdapter) publishPrefixCBRoute(ctx context.Context, cb callback) error {
	return r.facade.Publish.PublishAndReport(ctx, cb.ChatID, cb.UserID, strings.TrimPrefix(cb.Data, usecase.CBPublishPrefix))
}

func (r *RealTelegramBotAdapter) confirmDeletePrefixCBRoute(ctx context.Context, cb callback) error {
	r.removeKeyboard(cb.ChatID, cb.MessageID)
	_, err := r.facade.Listings.Delete(ctx, cb.ChatID, cb.UserID, strings.TrimPrefix(cb.Data, usecase.CBConfirmDelPrefix))
	return err
}

func (r *RealTelegramBotAdapter) cancelDeleteCBRoute(ctx context.Context, cb callback) error {
	r.removeKeyboard(cb.ChatID, cb.MessageID)
	return r.send(ctx, cb.ChatID, r.translator.T("delete_cancelled"), nil)
}

func (r *RealTelegramBotAdapter) adminListCBRoute(ctx context.Context, cb callback) error {
	return r.facade.Listings.SendList(ctx, cb.ChatID, cb.UserID)
}

func (r *RealTelegramBotAdapter) adminHintCBRoute(key string) cbHandler {
	return func(ctx context.Context, cb callback) error {
		return r.send(ctx, cb.ChatID, r.translator.T(key), nil)
	}
}

func (r *RealTelegramBotAdapter) whoAmICBRoute(ctx context.Context, cb callback) error {
	return r.send(ctx, cb.ChatID, r.translator.T("whoami", cb.UserID), nil)
}

func (r *RealTelegramBotAdapter) apiTokenCBRoute(ctx context.Context, cb callback) error {
	return r.issueAPIToken(ctx, cb.ChatID, cb.UserID)
}
