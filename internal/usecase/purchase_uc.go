package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/adapter"
	"telegram-listing-bot/internal/domain/ports/repository"
	"telegram-listing-bot/internal/infra/logging"
	"telegram-listing-bot/internal/infra/metrics"
)

const (
	lookupLimit  = 20
	lookupWindow = time.Minute
)

// PurchaseConfig is the pricing the buyer sees.
type PurchaseConfig struct {
	Price           int // minor units
	Currency        string
	Demo            bool // no provider token: deliver without charging
	SupportUsername string
}

// PurchaseUseCase is the buyer side: lookup, confirm, pay, deliver.
// Browsing reads go through listings, which may be cached. Payment checks
// and deliveries read store, the undecorated listing table.
type PurchaseUseCase struct {
	listings   repository.ListingRepository
	store      repository.ListingRepository
	deliveries repository.DeliveryRepository
	bot        adapter.TelegramBotAdapter
	tr         adapter.Translator
	limiter    RateLimiter
	cfg        PurchaseConfig
	log        *zerolog.Logger
	now        func() time.Time
}

func NewPurchaseUseCase(
	listings repository.ListingRepository,
	store repository.ListingRepository,
	deliveries repository.DeliveryRepository,
	bot adapter.TelegramBotAdapter,
	tr adapter.Translator,
	limiter RateLimiter,
	cfg PurchaseConfig,
	log *zerolog.Logger,
) *PurchaseUseCase {
	return &PurchaseUseCase{
		listings:   listings,
		store:      store,
		deliveries: deliveries,
		bot:        bot,
		tr:         tr,
		limiter:    limiter,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

func (uc *PurchaseUseCase) price() string { return FormatPrice(uc.cfg.Price, uc.cfg.Currency) }

func (uc *PurchaseUseCase) support() []adapter.InlineButton {
	return supportRow(uc.tr, uc.cfg.SupportUsername)
}

// Welcome answers /start. A deep-link argument goes straight to the lookup.
func (uc *PurchaseUseCase) Welcome(ctx context.Context, chatID int64, startArg string) error {
	kb := rows(
		[]adapter.InlineButton{{Text: uc.tr.T("btn_get_contact"), Data: CBGetContact}},
		uc.support(),
	)
	if err := uc.bot.SendMessage(ctx, adapter.Chat(chatID), uc.tr.T("start_welcome", uc.price()), kb); err != nil {
		return err
	}
	if strings.TrimSpace(startArg) == "" {
		return nil
	}
	return uc.Lookup(ctx, chatID, chatID, startArg)
}

// Help returns the buyer help text.
func (uc *PurchaseUseCase) Help() string { return uc.tr.T("help_user", uc.price()) }

// AskID prompts for a listing ID.
func (uc *PurchaseUseCase) AskID(ctx context.Context, chatID int64) error {
	return uc.bot.SendMessage(ctx, adapter.Chat(chatID), uc.tr.T("ask_listing_id"), nil)
}

// Lookup shows the channel text of rawID with confirm / pick-another buttons.
func (uc *PurchaseUseCase) Lookup(ctx context.Context, chatID, buyerID int64, rawID string) error {
	to := adapter.Chat(chatID)
	if uc.limiter != nil {
		ok, err := uc.limiter.Allow(ctx, fmt.Sprintf("rate_limit:%d:lookup", buyerID), lookupLimit, lookupWindow)
		if err != nil {
			logging.With(ctx, uc.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncRateLimitTriggered()
			return uc.bot.SendMessage(ctx, to, uc.tr.T("rate_limited"), nil)
		}
	}

	l, err := uc.find(ctx, rawID)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("listing_not_found"), rows(uc.support()))
	}
	if err != nil {
		return err
	}
	kb := [][]adapter.InlineButton{{
		{Text: uc.tr.T("btn_confirm_yes"), Data: CBConfirmPrefix + l.ID},
		{Text: uc.tr.T("btn_confirm_other"), Data: CBGetContact},
	}}
	return uc.bot.SendMessage(ctx, to, uc.tr.T("listing_confirm", l.ID, l.Text), kb)
}

// Confirm shows the payment prompt for id.
func (uc *PurchaseUseCase) Confirm(ctx context.Context, chatID int64, id string) error {
	to := adapter.Chat(chatID)
	l, err := uc.find(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("listing_gone"), rows(uc.support()))
	}
	if err != nil {
		return err
	}
	kb := [][]adapter.InlineButton{{{Text: uc.tr.T("btn_pay", uc.price()), Data: CBPayPrefix + l.ID}}}
	return uc.bot.SendMessage(ctx, to, uc.tr.T("pay_prompt", uc.price()), kb)
}

// Pay either sends an invoice or, in demo mode, delivers right away.
func (uc *PurchaseUseCase) Pay(ctx context.Context, chatID, buyerID int64, id string) error {
	to := adapter.Chat(chatID)
	l, err := uc.find(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("listing_gone"), rows(uc.support()))
	}
	if err != nil {
		return err
	}

	if uc.cfg.Demo {
		if err := uc.bot.SendMessage(ctx, to, uc.tr.T("demo_notice"), nil); err != nil {
			return err
		}
		return uc.CompletePayment(ctx, model.PaymentEvent{
			ChargeID:    "demo-" + uc.newID(),
			Payload:     l.ID,
			Currency:    uc.cfg.Currency,
			BuyerChatID: buyerID,
		})
	}

	inv := adapter.Invoice{
		Title:       uc.tr.T("invoice_title", l.ID),
		Description: uc.tr.T("invoice_description", l.ID),
		Label:       uc.tr.T("invoice_label"),
		Payload:     l.ID,
		Currency:    uc.cfg.Currency,
		Amount:      uc.cfg.Price,
	}
	if err := uc.bot.SendInvoice(ctx, chatID, inv); err != nil {
		logging.With(ctx, uc.log).Error().Err(err).Str("listing_id", l.ID).Msg("send invoice failed")
		metrics.IncPayment("invoice_failed")
		return uc.bot.SendMessage(ctx, to, uc.tr.T("invoice_failed", err.Error()), rows(uc.retryRow(l.ID), uc.support()))
	}
	metrics.IncPayment("invoiced")
	return nil
}

// PreCheckout accepts the query iff the listing in payload still exists.
func (uc *PurchaseUseCase) PreCheckout(ctx context.Context, queryID, payload string) error {
	_, err := uc.findStored(ctx, payload)
	switch {
	case err == nil:
		metrics.IncPayment("precheck_ok")
		return uc.bot.AnswerPreCheckout(ctx, queryID, true, "")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncPayment("precheck_rejected")
		logging.With(ctx, uc.log).Warn().Str("payload", payload).Msg("pre-checkout rejected: listing missing")
		return uc.bot.AnswerPreCheckout(ctx, queryID, false, uc.tr.T("precheckout_not_found"))
	default:
		metrics.IncPayment("precheck_rejected")
		if aerr := uc.bot.AnswerPreCheckout(ctx, queryID, false, uc.tr.T("generic_error")); aerr != nil {
			return errors.Join(err, aerr)
		}
		return err
	}
}

// CompletePayment releases the listing for a successful payment. The ledger
// entry is written before anything is sent, so a redelivered update with the
// same charge ID results in no second delivery.
func (uc *PurchaseUseCase) CompletePayment(ctx context.Context, ev model.PaymentEvent) error {
	log := logging.With(ctx, uc.log)
	to := adapter.Chat(ev.BuyerChatID)

	l, err := uc.findStored(ctx, ev.Payload)
	if errors.Is(err, domain.ErrNotFound) {
		log.Error().Str("charge_id", ev.ChargeID).Str("payload", ev.Payload).Msg("paid listing no longer exists")
		if serr := uc.bot.SendMessage(ctx, to, uc.tr.T("listing_gone"), rows(uc.support())); serr != nil {
			log.Error().Err(serr).Str("charge_id", ev.ChargeID).Msg("failed to tell buyer the listing is gone")
		}
		return fmt.Errorf("%w: listing %q for charge %s", domain.ErrPaymentRejected, ev.Payload, ev.ChargeID)
	}
	if err != nil {
		return err
	}

	mode := model.DeliveryModePaid
	if strings.HasPrefix(ev.ChargeID, "demo-") {
		mode = model.DeliveryModeDemo
	}
	d := &model.Delivery{
		ID:        uc.newID(),
		ChargeID:  ev.ChargeID,
		ListingID: l.ID,
		BuyerID:   ev.BuyerChatID,
		Mode:      mode,
		CreatedAt: uc.now().UTC(),
	}
	if err := uc.deliveries.Record(ctx, d); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			metrics.IncPayment("duplicate")
			log.Warn().Str("charge_id", ev.ChargeID).Msg("payment already delivered, skipping")
			return nil
		}
		return fmt.Errorf("record delivery: %w", err)
	}
	if mode == model.DeliveryModePaid {
		metrics.IncPayment("succeeded")
		metrics.AddPaymentRevenue(ev.Currency, int64(ev.TotalAmount))
	}

	return uc.release(ctx, d, l)
}

// Redeliver sends the payload of an existing ledger entry again, without a
// new charge. Only the buyer recorded on the entry may ask for it.
func (uc *PurchaseUseCase) Redeliver(ctx context.Context, chatID, buyerID int64, deliveryID string) error {
	log := logging.With(ctx, uc.log)
	to := adapter.Chat(chatID)

	d, err := uc.deliveries.FindByID(ctx, deliveryID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load delivery: %w", err)
	}
	if err != nil || d.BuyerID != buyerID {
		log.Warn().Str("delivery_id", deliveryID).Int64("buyer_id", buyerID).Msg("redelivery refused")
		return uc.bot.SendMessage(ctx, to, uc.tr.T("redelivery_unknown"), rows(uc.support()))
	}

	l, err := uc.store.FindByID(ctx, d.ListingID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Error().Str("delivery_id", d.ID).Str("listing_id", d.ListingID).Msg("paid listing no longer exists")
		return uc.bot.SendMessage(ctx, to, uc.tr.T("listing_gone"), rows(uc.support()))
	}
	if err != nil {
		return err
	}
	metrics.IncPayment("redelivery")
	return uc.release(ctx, d, l)
}

// release sends the payload for a recorded delivery. On failure the buyer gets
// a button that redelivers from the ledger entry, never a second invoice.
func (uc *PurchaseUseCase) release(ctx context.Context, d *model.Delivery, l *model.Listing) error {
	log := logging.With(ctx, uc.log)
	if err := uc.Deliver(ctx, d.BuyerID, l); err != nil {
		log.Error().Err(err).Str("delivery_id", d.ID).Str("listing_id", l.ID).Msg("delivery failed")
		kb := rows(uc.redeliverRow(d.ID), uc.support())
		if serr := uc.bot.SendMessage(ctx, adapter.Chat(d.BuyerID), uc.tr.T("delivery_failed"), kb); serr != nil {
			log.Error().Err(serr).Str("delivery_id", d.ID).Msg("failed to report delivery error")
		}
		return err
	}
	metrics.IncDelivery(string(d.Mode))
	log.Info().Str("delivery_id", d.ID).Str("listing_id", l.ID).Str("mode", string(d.Mode)).Msg("listing delivered")
	return nil
}

// Deliver sends the payload: confirmation, resolved text, contact, then the original post URL if any.
func (uc *PurchaseUseCase) Deliver(ctx context.Context, chatID int64, l *model.Listing) error {
	to := adapter.Chat(chatID)
	msgs := []outMsg{
		{text: uc.tr.T("delivery_confirmed")},
		{text: uc.tr.T("delivery_original_text", l.ResolvedText())},
		{text: uc.tr.T("delivery_contact", l.ContactLink), kb: rows(uc.support())},
	}
	if l.PostURL != "" {
		msgs = append(msgs, outMsg{text: uc.tr.T("delivery_post_url", l.PostURL)})
	}
	for _, m := range msgs {
		if err := uc.bot.SendMessage(ctx, to, m.text, m.kb); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
		}
	}
	return nil
}

type outMsg struct {
	text string
	kb   [][]adapter.InlineButton
}

func (uc *PurchaseUseCase) retryRow(id string) []adapter.InlineButton {
	return []adapter.InlineButton{{Text: uc.tr.T("btn_retry_pay"), Data: CBPayPrefix + id}}
}

func (uc *PurchaseUseCase) redeliverRow(deliveryID string) []adapter.InlineButton {
	return []adapter.InlineButton{{Text: uc.tr.T("btn_redeliver"), Data: CBRedeliverPrefix + deliveryID}}
}

func (uc *PurchaseUseCase) find(ctx context.Context, rawID string) (*model.Listing, error) {
	id, ok := model.NormalizeID(rawID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return uc.listings.FindByID(ctx, id)
}

func (uc *PurchaseUseCase) findStored(ctx context.Context, rawID string) (*model.Listing, error) {
	id, ok := model.NormalizeID(rawID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return uc.store.FindByID(ctx, id)
}

func (uc *PurchaseUseCase) newID() string {
	return ulid.MustNew(ulid.Timestamp(uc.now()), rand.Reader).String()
}
