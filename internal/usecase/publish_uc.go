package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/adapter"
	"telegram-listing-bot/internal/domain/ports/repository"
	"telegram-listing-bot/internal/infra/logging"
	"telegram-listing-bot/internal/infra/metrics"
)

// ChannelCaptionLimit is Telegram's caption limit for photos.
const ChannelCaptionLimit = 1024

// PublishUseCase posts a stored listing to the channel and marks it PUBLISHED.
type PublishUseCase struct {
	repo    repository.ListingRepository
	bot     adapter.TelegramBotAdapter
	tr      adapter.Translator
	channel adapter.ChatTarget
	adminID int64
	log     *zerolog.Logger
}

func NewPublishUseCase(repo repository.ListingRepository, bot adapter.TelegramBotAdapter, tr adapter.Translator, channel adapter.ChatTarget, adminID int64, log *zerolog.Logger) *PublishUseCase {
	return &PublishUseCase{repo: repo, bot: bot, tr: tr, channel: channel, adminID: adminID, log: log}
}

// DeepLink is the bot link that opens the buyer flow for id.
func DeepLink(botUsername, id string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, id)
}

// Publish sends listing id to the channel. The status only changes after every
// send succeeded; a send error comes back wrapped in domain.ErrDeliveryFailed.
func (uc *PublishUseCase) Publish(ctx context.Context, actorID int64, id string) error {
	defer logging.TraceDuration(uc.log, "PublishUseCase.Publish")()
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return err
	}
	l, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncPublish("not_found")
		}
		return err
	}

	if err := uc.send(ctx, l); err != nil {
		metrics.IncPublish("failed")
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	if err := uc.repo.SetStatus(ctx, l.ID, model.ListingStatusPublished); err != nil {
		return fmt.Errorf("mark %s published: %w", l.ID, err)
	}
	metrics.IncPublish("ok")
	logging.With(ctx, uc.log).Info().Str("listing_id", l.ID).Int("photos", len(l.Photos)).
		Bool("republish", l.IsPublished()).Msg("listing published")
	return nil
}

func (uc *PublishUseCase) send(ctx context.Context, l *model.Listing) error {
	kb := [][]adapter.InlineButton{{
		{Text: uc.tr.T("btn_channel_get_contact"), URL: DeepLink(uc.bot.BotUsername(), l.ID)},
	}}
	fits := model.RuneLen(l.Text) <= ChannelCaptionLimit

	switch len(l.Photos) {
	case 0:
		return uc.bot.SendMessage(ctx, uc.channel, l.Text, kb)
	case 1:
		if fits {
			return uc.bot.SendPhoto(ctx, uc.channel, l.Photos[0], l.Text, kb)
		}
		if err := uc.bot.SendMessage(ctx, uc.channel, l.Text, kb); err != nil {
			return err
		}
		return uc.bot.SendPhoto(ctx, uc.channel, l.Photos[0], "", nil)
	default:
		album := make([]adapter.Photo, len(l.Photos))
		for i, p := range l.Photos {
			album[i] = adapter.Photo{FileID: p}
		}
		if fits {
			album[0].Caption = l.Text
		}
		if err := uc.bot.SendMediaGroup(ctx, uc.channel, album); err != nil {
			return err
		}
		// albums cannot carry a keyboard
		return uc.bot.SendMessage(ctx, uc.channel, l.Text, kb)
	}
}

// PublishAndReport is shared by /publish and the preview button: it publishes
// and tells the admin what happened.
func (uc *PublishUseCase) PublishAndReport(ctx context.Context, chatID, actorID int64, rawID string) error {
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return err
	}
	to := adapter.Chat(chatID)
	if strings.TrimSpace(rawID) == "" {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("publish_usage"), nil)
	}
	id, ok := model.NormalizeID(rawID)
	if !ok {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("invalid_id", strings.TrimSpace(rawID)), nil)
	}

	err := uc.Publish(ctx, actorID, id)
	switch {
	case err == nil:
		return uc.bot.SendMessage(ctx, to, uc.tr.T("publish_done", id), nil)
	case errors.Is(err, domain.ErrNotFound):
		return uc.bot.SendMessage(ctx, to, uc.tr.T("publish_not_found", id), nil)
	case errors.Is(err, domain.ErrDeliveryFailed):
		logging.With(ctx, uc.log).Error().Err(err).Str("listing_id", id).Msg("publish failed")
		return uc.bot.SendMessage(ctx, to, uc.tr.T("publish_failed", err.Error()), nil)
	default:
		return err
	}
}
