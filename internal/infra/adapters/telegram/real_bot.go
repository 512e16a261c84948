package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/application"
	"telegram-listing-bot/internal/config"
	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/adapter"
	"telegram-listing-bot/internal/infra/logging"
	"telegram-listing-bot/internal/infra/metrics"
	"telegram-listing-bot/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botClient is the part of *tgbotapi.BotAPI the adapter uses.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
	GetUpdatesChan(c tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TokenIssuer mints admin API tokens for /apitoken. Nil disables the command.
type TokenIssuer interface {
	Mint(subject string) (string, error)
	TTL() time.Duration
}

// RealTelegramBotAdapter implements adapter.TelegramBotAdapter with tgbotapi and
// routes incoming updates to the BotFacade.
type RealTelegramBotAdapter struct {
	bot           botClient
	username      string
	providerToken string
	adminID       int64
	updateWorkers int

	facade     *application.BotFacade
	translator adapter.Translator
	tokens     TokenIssuer
	log        *zerolog.Logger

	cancelPolling context.CancelFunc
}

// NewRealTelegramBotAdapter authenticates with the Bot API. Call Bind before
// handling updates: the use cases need the adapter, so the facade comes later.
func NewRealTelegramBotAdapter(cfg *config.Config, translator adapter.Translator, log *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if translator == nil {
		return nil, errors.New("translator is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	bot.Debug = cfg.Runtime.Dev && strings.EqualFold(cfg.Log.Level, "trace")

	providerToken := cfg.Payment.ProviderToken
	if cfg.Payment.DemoMode() {
		providerToken = ""
	}
	return &RealTelegramBotAdapter{
		bot:           bot,
		username:      bot.Self.UserName,
		providerToken: providerToken,
		adminID:       cfg.Bot.AdminID,
		updateWorkers: cfg.Bot.Workers,
		translator:    translator,
		log:           log,
	}, nil
}

// Bind attaches the facade and the optional API token issuer.
func (r *RealTelegramBotAdapter) Bind(facade *application.BotFacade, tokens TokenIssuer) {
	r.facade = facade
	r.tokens = tokens
}

func (r *RealTelegramBotAdapter) BotUsername() string { return r.username }

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	return r.adminID != 0 && tgID == r.adminID
}

// ---- polling / webhook ----

// StartPolling removes any webhook, then feeds updates into a worker pool until ctx is done.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	pool := worker.NewPool(r.updateWorkers, r.log)
	pool.Start(ctx)
	r.log.Info().Int("workers", r.updateWorkers).Str("bot", r.username).Msg("polling started")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			pool.Stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				pool.Stop()
				return nil
			}
			if err := pool.SubmitKeyed(ctx, updateChatID(update), func(ctx context.Context) error {
				return r.HandleUpdate(ctx, update)
			}); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Int("update_id", update.UpdateID).Msg("dropping update")
			}
		}
	}
}

// updateChatID is the chat an update belongs to. Updates of one chat share a
// worker so an album's photos are handled in the order Telegram sent them.
func updateChatID(u tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	case u.PreCheckoutQuery != nil && u.PreCheckoutQuery.From != nil:
		return u.PreCheckoutQuery.From.ID
	}
	return int64(u.UpdateID)
}

// StopPolling stops the polling loop gracefully.
func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// RegisterWebhook points Telegram at baseURL/webhook/<token>.
func (r *RealTelegramBotAdapter) RegisterWebhook(baseURL, token string) error {
	wh, err := tgbotapi.NewWebhook(strings.TrimRight(baseURL, "/") + "/webhook/" + token)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if _, err := r.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// ---- outbound (adapter.TelegramBotAdapter) ----

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, to adapter.ChatTarget, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg tgbotapi.MessageConfig
	if to.Username != "" {
		msg = tgbotapi.NewMessageToChannel(to.Username, text)
	} else {
		msg = tgbotapi.NewMessage(to.ID, text)
	}
	msg.DisableWebPagePreview = true
	if kb := inlineMarkup(rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) SendPhoto(ctx context.Context, to adapter.ChatTarget, fileID, caption string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var p tgbotapi.PhotoConfig
	if to.Username != "" {
		p = tgbotapi.NewPhotoToChannel(to.Username, tgbotapi.FileID(fileID))
	} else {
		p = tgbotapi.NewPhoto(to.ID, tgbotapi.FileID(fileID))
	}
	p.Caption = caption
	if kb := inlineMarkup(rows); kb != nil {
		p.ReplyMarkup = *kb
	}
	_, err := r.bot.Send(p)
	return err
}

// SendMediaGroup sends an album. Telegram wants 2 to 10 items, so a single
// photo goes out as a plain photo with the same caption.
func (r *RealTelegramBotAdapter) SendMediaGroup(ctx context.Context, to adapter.ChatTarget, photos []adapter.Photo) error {
	switch len(photos) {
	case 0:
		return nil
	case 1:
		return r.SendPhoto(ctx, to, photos[0].FileID, photos[0].Caption, nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	media := make([]interface{}, 0, len(photos))
	for _, p := range photos {
		item := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(p.FileID))
		item.Caption = p.Caption
		media = append(media, item)
	}
	group := tgbotapi.NewMediaGroup(to.ID, media)
	group.ChannelUsername = to.Username
	_, err := r.bot.SendMediaGroup(group)
	return err
}

func (r *RealTelegramBotAdapter) SendInvoice(ctx context.Context, chatID int64, inv adapter.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.providerToken == "" {
		return domain.ErrPaymentsOff
	}
	cfg := tgbotapi.NewInvoice(chatID, inv.Title, inv.Description, inv.Payload, r.providerToken,
		"", inv.Currency, []tgbotapi.LabeledPrice{{Label: inv.Label, Amount: inv.Amount}})
	// a nil slice is sent as null, which the API rejects
	cfg.SuggestedTipAmounts = []int{}
	_, err := r.bot.Send(cfg)
	return err
}

func (r *RealTelegramBotAdapter) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	return err
}

func (r *RealTelegramBotAdapter) send(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	return r.SendMessage(ctx, adapter.Chat(chatID), text, rows)
}

func (r *RealTelegramBotAdapter) removeKeyboard(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := r.bot.Request(edit); err != nil {
		r.log.Debug().Err(err).Int64("chat_id", chatID).Msg("remove keyboard failed")
	}
}

// inlineMarkup converts port buttons. URL buttons open a link, the rest send callback data.
func inlineMarkup(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			if btn.URL != "" {
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			} else {
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			}
		}
		kbRows = append(kbRows, out)
	}
	if len(kbRows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &kb
}

// ---- inbound ----

// HandleUpdate dispatches one update. Used by both the polling workers and the webhook.
func (r *RealTelegramBotAdapter) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if r.facade == nil {
		return errors.New("telegram adapter is not bound to a facade")
	}
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	kind := updateKind(update)
	ctx = logging.WithUpdateKind(ctx, kind)
	metrics.IncUpdate(kind)

	switch {
	case update.PreCheckoutQuery != nil:
		q := update.PreCheckoutQuery
		if q.From != nil {
			ctx = logging.WithTgID(ctx, q.From.ID)
		}
		return r.facade.Purchase.PreCheckout(ctx, q.ID, q.InvoicePayload)

	case update.CallbackQuery != nil:
		if q := update.CallbackQuery; q.From != nil {
			ctx = logging.WithTgID(ctx, q.From.ID)
		}
		return r.handleQuery(ctx, update.CallbackQuery)

	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.Chat == nil {
			return nil
		}
		ctx = logging.WithTgID(ctx, m.From.ID)
		return r.handleMessage(ctx, m)
	}
	return nil
}

func updateKind(u tgbotapi.Update) string {
	switch {
	case u.PreCheckoutQuery != nil:
		return "pre_checkout"
	case u.CallbackQuery != nil:
		return "callback"
	case u.Message == nil:
		return "other"
	case u.Message.SuccessfulPayment != nil:
		return "payment"
	case len(u.Message.Photo) > 0:
		return "photo"
	case u.Message.IsCommand():
		return "command"
	default:
		return "message"
	}
}

func (r *RealTelegramBotAdapter) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	chatID, userID := m.Chat.ID, m.From.ID

	if sp := m.SuccessfulPayment; sp != nil {
		return r.report(ctx, chatID, r.facade.Purchase.CompletePayment(ctx, model.PaymentEvent{
			ChargeID:         sp.TelegramPaymentChargeID,
			ProviderChargeID: sp.ProviderPaymentChargeID,
			Payload:          sp.InvoicePayload,
			Currency:         sp.Currency,
			TotalAmount:      sp.TotalAmount,
			BuyerChatID:      chatID,
		}))
	}

	if m.IsCommand() {
		cmd := strings.ToLower(m.Command())
		metrics.IncTelegramCommand("/" + cmd)
		handler, ok := r.commandRoutes()[cmd]
		if !ok {
			return r.send(ctx, chatID, r.facade.HelpText(userID), nil)
		}
		return r.report(ctx, chatID, handler(ctx, m))
	}

	if len(m.Photo) > 0 {
		// the last size is the largest
		fileID := m.Photo[len(m.Photo)-1].FileID
		_, err := r.facade.HandlePhoto(ctx, chatID, userID, fileID)
		return r.report(ctx, chatID, err)
	}

	if strings.TrimSpace(m.Text) == "" {
		return nil
	}
	_, err := r.facade.HandleText(ctx, chatID, userID, m.Text)
	return r.report(ctx, chatID, err)
}

// report turns a handler error into a reply. Delivery and payment failures are
// answered by the use cases themselves, so they are only logged here.
func (r *RealTelegramBotAdapter) report(ctx context.Context, chatID int64, err error) error {
	if err == nil {
		return nil
	}
	log := logging.With(ctx, r.log)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return r.send(ctx, chatID, r.translator.T("unauthorized"), nil)
	case errors.Is(err, domain.ErrDeliveryFailed), errors.Is(err, domain.ErrPaymentRejected):
		log.Warn().Err(err).Msg("handler reported failure")
		return nil
	}
	log.Error().Err(err).Msg("handler failed")
	if serr := r.send(ctx, chatID, r.translator.T("generic_error"), nil); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}
