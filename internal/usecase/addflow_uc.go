package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/flow"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/adapter"
	"telegram-listing-bot/internal/domain/ports/repository"
	"telegram-listing-bot/internal/infra/logging"
)

const previewCaptionRunes = 900

// AddFlowUseCase drives the admin "add listing" conversation. It loads the
// session, feeds the event to flow.Transition and carries out the effects.
// Every load-transition-save cycle runs under the chat's lock, so photos of
// an album that arrive as parallel updates are all appended.
type AddFlowUseCase struct {
	sessions repository.SessionRepository
	locks    repository.SessionLocker
	listings repository.ListingRepository
	bot      adapter.TelegramBotAdapter
	tr       adapter.Translator
	adminID  int64
	log      *zerolog.Logger
}

func NewAddFlowUseCase(
	sessions repository.SessionRepository,
	locks repository.SessionLocker,
	listings repository.ListingRepository,
	bot adapter.TelegramBotAdapter,
	tr adapter.Translator,
	adminID int64,
	log *zerolog.Logger,
) *AddFlowUseCase {
	return &AddFlowUseCase{sessions: sessions, locks: locks, listings: listings, bot: bot, tr: tr, adminID: adminID, log: log}
}

func (uc *AddFlowUseCase) lock(ctx context.Context, chatID int64) (func(), error) {
	if uc.locks == nil {
		return func() {}, nil
	}
	unlock, err := uc.locks.Lock(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	return unlock, nil
}

// Start opens a fresh session for rawID, replacing any session in progress.
func (uc *AddFlowUseCase) Start(ctx context.Context, chatID, actorID int64, rawID string) error {
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return err
	}
	to := adapter.Chat(chatID)
	if strings.TrimSpace(rawID) == "" {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("add_usage"), nil)
	}
	id, ok := model.NormalizeID(rawID)
	if !ok {
		return uc.bot.SendMessage(ctx, to, uc.tr.T("invalid_id", strings.TrimSpace(rawID)), nil)
	}
	unlock, err := uc.lock(ctx, chatID)
	if err != nil {
		return err
	}
	defer unlock()
	s, effects := flow.Start(id)
	logging.With(ctx, uc.log).Info().Str("listing_id", id).Msg("add flow started")
	return uc.apply(ctx, chatID, s, effects)
}

// HandleText feeds admin text into the flow. handled is false when the chat has
// no session, so the caller can treat the text as an ordinary message.
func (uc *AddFlowUseCase) HandleText(ctx context.Context, chatID, actorID int64, text string) (bool, error) {
	return uc.feed(ctx, chatID, actorID, flow.TextEvent{Text: text})
}

// HandlePhoto feeds the largest size of an uploaded photo into the flow.
func (uc *AddFlowUseCase) HandlePhoto(ctx context.Context, chatID, actorID int64, fileID string) (bool, error) {
	return uc.feed(ctx, chatID, actorID, flow.PhotoEvent{FileID: fileID})
}

// HandleAction applies an inline button press. Cancel works without a session.
func (uc *AddFlowUseCase) HandleAction(ctx context.Context, chatID, actorID int64, action flow.Action) error {
	_, err := uc.feed(ctx, chatID, actorID, flow.ActionEvent{Action: action})
	return err
}

// Finish is the /done command.
func (uc *AddFlowUseCase) Finish(ctx context.Context, chatID, actorID int64) error {
	handled, err := uc.feed(ctx, chatID, actorID, flow.ActionEvent{Action: flow.ActionFinish})
	if err != nil {
		return err
	}
	if !handled {
		return uc.bot.SendMessage(ctx, adapter.Chat(chatID), uc.tr.T("flow_nothing_to_finish"), nil)
	}
	return nil
}

// Restart drops the session and asks for a new ID.
func (uc *AddFlowUseCase) Restart(ctx context.Context, chatID, actorID int64) error {
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return err
	}
	unlock, err := uc.lock(ctx, chatID)
	if err != nil {
		return err
	}
	defer unlock()
	if err := uc.sessions.ClearSession(ctx, chatID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return uc.bot.SendMessage(ctx, adapter.Chat(chatID), uc.tr.T("restart_hint"), nil)
}

// Debug shows the current step and collected fields.
func (uc *AddFlowUseCase) Debug(ctx context.Context, chatID, actorID int64) error {
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return err
	}
	s, err := uc.sessions.GetSession(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.bot.SendMessage(ctx, adapter.Chat(chatID), uc.tr.T("dbg_no_session"), nil)
	}
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(s, "", "  ")
	return uc.bot.SendMessage(ctx, adapter.Chat(chatID), uc.tr.T("dbg_session", string(s.Step), string(data)), nil)
}

func (uc *AddFlowUseCase) feed(ctx context.Context, chatID, actorID int64, ev flow.Event) (bool, error) {
	if err := requireAdmin(actorID, uc.adminID); err != nil {
		return false, err
	}
	unlock, err := uc.lock(ctx, chatID)
	if err != nil {
		return false, err
	}
	defer unlock()
	s, err := uc.sessions.GetSession(ctx, chatID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("load session: %w", err)
	}
	next, effects := flow.Transition(s, ev)
	if s == nil && next == nil && len(effects) == 0 {
		return false, nil
	}
	return true, uc.apply(ctx, chatID, next, effects)
}

// apply persists the resulting session first so a failed send never leaves a stale step behind.
func (uc *AddFlowUseCase) apply(ctx context.Context, chatID int64, next *flow.Session, effects []flow.Effect) error {
	if next == nil {
		if err := uc.sessions.ClearSession(ctx, chatID); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	} else if err := uc.sessions.SetSession(ctx, chatID, next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	to := adapter.Chat(chatID)
	for _, eff := range effects {
		var err error
		switch e := eff.(type) {
		case flow.Say:
			text, kb := uc.renderPrompt(e.Prompt, next)
			err = uc.bot.SendMessage(ctx, to, text, kb)
		case flow.Preview:
			err = uc.preview(ctx, chatID, e.Listing)
		case flow.Incomplete:
			if e.ListingID == "" {
				err = uc.bot.SendMessage(ctx, to, uc.tr.T("flow_incomplete_no_id"), nil)
			} else {
				err = uc.bot.SendMessage(ctx, to, uc.tr.T("flow_incomplete", e.ListingID), nil)
			}
		case flow.Cancelled:
			err = uc.bot.SendMessage(ctx, to, uc.tr.T("flow_cancelled"), nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (uc *AddFlowUseCase) cancelRow() []adapter.InlineButton {
	return []adapter.InlineButton{{Text: uc.tr.T("btn_cancel"), Data: string(flow.ActionCancel)}}
}

func (uc *AddFlowUseCase) renderPrompt(p flow.Prompt, s *flow.Session) (string, [][]adapter.InlineButton) {
	key := string(p)
	finishRows := rows(
		[]adapter.InlineButton{{Text: uc.tr.T("btn_finish_preview"), Data: string(flow.ActionFinish)}},
		uc.cancelRow(),
	)
	var listingID, channelText string
	var photos int
	if s != nil {
		listingID, channelText, photos = s.ListingID, s.ChannelText, len(s.Photos)
	}

	switch p {
	case flow.PromptChannelText:
		return uc.tr.T(key, listingID), rows(uc.cancelRow())
	case flow.PromptConfirmText:
		return uc.tr.T(key, listingID, channelText), rows(
			[]adapter.InlineButton{{Text: uc.tr.T("btn_text_ok"), Data: string(flow.ActionTextOK)}},
			[]adapter.InlineButton{{Text: uc.tr.T("btn_text_edit"), Data: string(flow.ActionTextEdit)}},
			uc.cancelRow(),
		)
	case flow.PromptLinkDecision:
		return uc.tr.T(key), rows(
			[]adapter.InlineButton{{Text: uc.tr.T("btn_has_link"), Data: string(flow.ActionHasLink)}},
			[]adapter.InlineButton{{Text: uc.tr.T("btn_no_link"), Data: string(flow.ActionNoLink)}},
			uc.cancelRow(),
		)
	case flow.PromptPhotoChoice:
		return uc.tr.T(key), rows(
			[]adapter.InlineButton{{Text: uc.tr.T("btn_add_photos"), Data: string(flow.ActionPhotosYes)}},
			[]adapter.InlineButton{{Text: uc.tr.T("btn_no_photos"), Data: string(flow.ActionPhotosNo)}},
			uc.cancelRow(),
		)
	case flow.PromptPhotos, flow.PromptPhotoLimit:
		return uc.tr.T(key, model.MaxPhotos), finishRows
	case flow.PromptPhotoSaved:
		return uc.tr.T(key, photos, model.MaxPhotos), finishRows
	default:
		return uc.tr.T(key), rows(uc.cancelRow())
	}
}

// preview stores the listing as DRAFT and shows it the way the channel will see it.
func (uc *AddFlowUseCase) preview(ctx context.Context, chatID int64, l *model.Listing) error {
	log := logging.With(ctx, uc.log)
	to := adapter.Chat(chatID)
	if err := uc.listings.Upsert(ctx, l); err != nil {
		log.Error().Err(err).Str("listing_id", l.ID).Msg("failed to store draft")
		if errors.Is(err, domain.ErrValidationIncomplete) {
			return uc.bot.SendMessage(ctx, to, uc.tr.T("flow_incomplete", l.ID), nil)
		}
		return fmt.Errorf("upsert draft %s: %w", l.ID, err)
	}
	log.Info().Str("listing_id", l.ID).Int("photos", len(l.Photos)).Msg("draft stored")

	if err := uc.sendPreview(ctx, to, l); err != nil {
		log.Error().Err(err).Str("listing_id", l.ID).Msg("failed to send preview")
		if serr := uc.bot.SendMessage(ctx, to, uc.tr.T("preview_failed", err.Error()), nil); serr != nil {
			log.Error().Err(serr).Str("listing_id", l.ID).Msg("failed to report preview error")
		}
	}

	withURL, original := "", uc.tr.T("dash")
	if l.PostURL != "" {
		withURL, original = uc.tr.T("preview_with_url"), l.PostURL
	}
	summary := uc.tr.T("preview_summary", l.ID, withURL, l.ContactLink, original)
	kb := rows(
		[]adapter.InlineButton{
			{Text: uc.tr.T("btn_publish"), Data: CBPublishPrefix + l.ID},
			{Text: uc.tr.T("btn_restart"), Data: CBRestart},
		},
		uc.cancelRow(),
	)
	return uc.bot.SendMessage(ctx, to, summary, kb)
}

func (uc *AddFlowUseCase) sendPreview(ctx context.Context, to adapter.ChatTarget, l *model.Listing) error {
	if len(l.Photos) == 0 {
		return uc.bot.SendMessage(ctx, to, l.Text, nil)
	}
	short := model.RuneLen(l.Text) <= previewCaptionRunes
	album := make([]adapter.Photo, len(l.Photos))
	for i, id := range l.Photos {
		album[i] = adapter.Photo{FileID: id}
	}
	if short {
		album[0].Caption = l.Text
	}
	if err := uc.bot.SendMediaGroup(ctx, to, album); err != nil {
		return err
	}
	if !short {
		return uc.bot.SendMessage(ctx, to, l.Text, nil)
	}
	return nil
}
