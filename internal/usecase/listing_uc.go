package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/adapter"
	"telegram-listing-bot/internal/domain/ports/repository"
)

const deletePreviewRunes = 300

// ListingUseCase covers the admin inventory: overview, lookup and delete-with-confirmation.
type ListingUseCase struct {
	repo    repository.ListingRepository
	bot     adapter.TelegramBotAdapter
	tr      adapter.Translator
	adminID int64
	log     *zerolog.Logger
}

func NewListingUseCase(repo repository.ListingRepository, bot adapter.TelegramBotAdapter, tr adapter.Translator, adminID int64, log *zerolog.Logger) *ListingUseCase {
	return &ListingUseCase{repo: repo, bot: bot, tr: tr, adminID: adminID, log: log}
}

// List returns the listing overview. Admin only.
func (uc *ListingUseCase) List(ctx context.Context, actorID int64) ([]model.ListingSummary, error) {
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return nil, err
	}
	return uc.repo.ListAll(ctx)
}

// Get returns one listing. Used by the read-only admin API, which authenticates on its own.
func (uc *ListingUseCase) Get(ctx context.Context, rawID string) (*model.Listing, error) {
	id, ok := model.NormalizeID(rawID)
	if !ok {
		return nil, domain.ErrInvalidArgument
	}
	return uc.repo.FindByID(ctx, id)
}

// All returns the overview without an actor check. Used by the admin API.
func (uc *ListingUseCase) All(ctx context.Context) ([]model.ListingSummary, error) {
	return uc.repo.ListAll(ctx)
}

// SendList renders the overview into chatID.
func (uc *ListingUseCase) SendList(ctx context.Context, chatID, actorID int64) error {
	items, err := uc.List(ctx, actorID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return uc.bot.SendMessage(ctx, adapter.Chat(chatID), uc.tr.T("listings_empty"), nil)
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, uc.tr.T("listings_row", it.ID, string(it.Status), it.Preview))
	}
	return uc.bot.SendMessage(ctx, adapter.Chat(chatID), strings.Join(lines, "\n"), nil)
}

// AskDelete shows the listing preview with Delete / Cancel buttons.
func (uc *ListingUseCase) AskDelete(ctx context.Context, chatID, actorID int64, rawID string) error {
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return err
	}
	to := adapter.Chat(chatID)
	if strings.TrimSpace(rawID) == "" {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("delete_usage"), nil)
	}
	id, ok := model.NormalizeID(rawID)
	if !ok {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("invalid_id", strings.TrimSpace(rawID)), nil)
	}
	l, err := uc.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("publish_not_found", id), nil)
	}
	if err != nil {
		return err
	}
	kb := [][]adapter.InlineButton{{
		{Text: uc.tr.T("btn_delete"), Data: CBConfirmDelPrefix + id},
		{Text: uc.tr.T("btn_cancel"), Data: CBCancelDel},
	}}
	return uc.bot.SendMessage(ctx, to, uc.tr.T("delete_confirm", id, model.Shorten(l.Text, deletePreviewRunes)), kb)
}

// Delete removes the listing and reports whether it existed.
func (uc *ListingUseCase) Delete(ctx context.Context, chatID, actorID int64, rawID string) (bool, error) {
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return false, err
	}
	id, ok := model.NormalizeID(rawID)
	if !ok {
		return false, domain.ErrInvalidArgument
	}
	existed, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	uc.log.Info().Str("listing_id", id).Bool("existed", existed).Msg("listing deleted")

	key := "delete_missing"
	if existed {
		key = "delete_done"
	}
	return existed, uc.bot.SendMessage(ctx, adapter.Chat(chatID), uc.tr.T(key, id), nil)
}
