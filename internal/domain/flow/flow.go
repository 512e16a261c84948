// Package flow holds the admin "add listing" conversation as a pure state machine.
// Transition never talks to Telegram or storage; callers interpret the returned effects.
package flow

import (
	"strings"

	"telegram-listing-bot/internal/domain/model"
)

// Step is the point of the conversation the admin is currently at.
type Step string

const (
	StepChannelText  Step = "channel_text"
	StepConfirmText  Step = "confirm_text"
	StepLinkDecision Step = "link_decision"
	StepPostURL      Step = "post_url"
	StepOriginalText Step = "original_text"
	StepContact      Step = "contact"
	StepPhotoChoice  Step = "photo_choice"
	StepPhotos       Step = "photos"
)

// Session is the partially built listing of one admin chat.
type Session struct {
	Step         Step              `json:"step"`
	ListingID    string            `json:"listing_id"`
	ChannelText  string            `json:"channel_text"`
	OriginalText string            `json:"orig_text"`
	PostURL      string            `json:"post_url"`
	ContactLink  string            `json:"link"`
	DeliverMode  model.DeliverMode `json:"deliver_mode"`
	Photos       []string          `json:"photos"`
}

// NewSession starts a fresh session for the given (already normalized) listing ID.
func NewSession(listingID string) *Session {
	return &Session{
		Step:      StepChannelText,
		ListingID: listingID,
		Photos:    []string{},
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Photos = append([]string(nil), s.Photos...)
	return &cp
}

// Listing builds the DRAFT listing the session describes so far.
func (s *Session) Listing() *model.Listing {
	return &model.Listing{
		ID:           s.ListingID,
		Text:         s.ChannelText,
		ContactLink:  s.ContactLink,
		PostURL:      s.PostURL,
		OriginalText: s.OriginalText,
		DeliverMode:  s.DeliverMode,
		Photos:       append([]string(nil), s.Photos...),
		Status:       model.ListingStatusDraft,
	}
}

// Action is an inline button press. The value doubles as the callback data.
type Action string

const (
	ActionTextOK    Action = "chantext:ok"
	ActionTextEdit  Action = "chantext:edit"
	ActionHasLink   Action = "haslink:yes"
	ActionNoLink    Action = "haslink:no"
	ActionPhotosYes Action = "photos:yes"
	ActionPhotosNo  Action = "photos:no"
	ActionFinish    Action = "finish_add"
	ActionCancel    Action = "cancel_add"
)

// ParseAction maps callback data to a flow action.
func ParseAction(data string) (Action, bool) {
	switch a := Action(data); a {
	case ActionTextOK, ActionTextEdit, ActionHasLink, ActionNoLink,
		ActionPhotosYes, ActionPhotosNo, ActionFinish, ActionCancel:
		return a, true
	}
	return "", false
}

// Event is an admin input fed into the machine.
type Event interface{ isEvent() }

type TextEvent struct{ Text string }
type PhotoEvent struct{ FileID string }
type ActionEvent struct{ Action Action }

func (TextEvent) isEvent()   {}
func (PhotoEvent) isEvent()  {}
func (ActionEvent) isEvent() {}

// Prompt names a message the admin should see next.
type Prompt string

const (
	PromptChannelText      Prompt = "flow_ask_channel_text"
	PromptChannelTextEmpty Prompt = "flow_channel_text_empty"
	PromptEditText         Prompt = "flow_ask_channel_text_edit"
	PromptConfirmText      Prompt = "flow_confirm_channel_text"
	PromptLinkDecision     Prompt = "flow_ask_link_decision"
	PromptPostURL          Prompt = "flow_ask_post_url"
	PromptOriginalText     Prompt = "flow_ask_original_text"
	PromptContact          Prompt = "flow_ask_contact"
	PromptPhotoChoice      Prompt = "flow_ask_photo_choice"
	PromptPhotos           Prompt = "flow_ask_photos"
	PromptPhotoSaved       Prompt = "flow_photo_saved"
	PromptPhotoLimit       Prompt = "flow_photo_limit"
)

// Effect is something the caller must do after a transition.
type Effect interface{ isEffect() }

// Say asks the caller to show a prompt rendered against the resulting session.
type Say struct{ Prompt Prompt }

// Preview asks the caller to persist the listing as DRAFT and show the preview.
type Preview struct{ Listing *model.Listing }

// Incomplete reports that required fields were missing when the preview was requested.
type Incomplete struct{ ListingID string }

// Cancelled reports that the admin aborted the flow.
type Cancelled struct{}

func (Say) isEffect()        {}
func (Preview) isEffect()    {}
func (Incomplete) isEffect() {}
func (Cancelled) isEffect()  {}

// Start opens a session for listingID.
func Start(listingID string) (*Session, []Effect) {
	return NewSession(listingID), []Effect{Say{PromptChannelText}}
}

// Transition applies ev to s. A nil resulting session means the session is over and must be cleared.
// When s is nil and ev is not a cancel, both results are nil: the input does not belong to the flow.
func Transition(s *Session, ev Event) (*Session, []Effect) {
	if a, ok := ev.(ActionEvent); ok && a.Action == ActionCancel {
		return nil, []Effect{Cancelled{}}
	}
	if s == nil {
		return nil, nil
	}
	next := s.Clone()

	switch s.Step {
	case StepChannelText:
		if t, ok := ev.(TextEvent); ok {
			return acceptChannelText(next, t.Text)
		}
		return next, say(PromptChannelText)

	case StepConfirmText:
		switch e := ev.(type) {
		case ActionEvent:
			switch e.Action {
			case ActionTextOK:
				next.Step = StepLinkDecision
				return next, say(PromptLinkDecision)
			case ActionTextEdit:
				next.Step = StepChannelText
				return next, say(PromptEditText)
			}
		case TextEvent:
			return acceptChannelText(next, e.Text)
		}
		return next, say(PromptConfirmText)

	case StepLinkDecision:
		if e, ok := ev.(ActionEvent); ok {
			switch e.Action {
			case ActionHasLink:
				next.Step = StepPostURL
				return next, say(PromptPostURL)
			case ActionNoLink:
				next.Step = StepOriginalText
				return next, say(PromptOriginalText)
			}
		}
		return next, say(PromptLinkDecision)

	case StepPostURL:
		if t, ok := text(ev); ok {
			next.PostURL = t
			next.Step = StepContact
			return next, say(PromptContact)
		}
		return next, say(PromptPostURL)

	case StepOriginalText:
		if t, ok := text(ev); ok {
			next.OriginalText = t
			next.Step = StepContact
			return next, say(PromptContact)
		}
		return next, say(PromptOriginalText)

	case StepContact:
		if t, ok := text(ev); ok {
			next.ContactLink = t
			next.DeliverMode = model.DeliverModeText
			next.Step = StepPhotoChoice
			return next, say(PromptPhotoChoice)
		}
		return next, say(PromptContact)

	case StepPhotoChoice:
		if e, ok := ev.(ActionEvent); ok {
			switch e.Action {
			case ActionPhotosYes:
				next.Step = StepPhotos
				return next, say(PromptPhotos)
			case ActionPhotosNo:
				return finish(next)
			}
		}
		return next, say(PromptPhotoChoice)

	case StepPhotos:
		switch e := ev.(type) {
		case PhotoEvent:
			if len(next.Photos) >= model.MaxPhotos {
				return next, say(PromptPhotoLimit)
			}
			if e.FileID == "" {
				return next, say(PromptPhotos)
			}
			next.Photos = append(next.Photos, e.FileID)
			return next, say(PromptPhotoSaved)
		case ActionEvent:
			if e.Action == ActionFinish {
				return finish(next)
			}
		}
		return next, say(PromptPhotos)
	}

	// Unknown step (e.g. a stale stored session): drop it.
	return nil, []Effect{Incomplete{ListingID: s.ListingID}}
}

func acceptChannelText(next *Session, raw string) (*Session, []Effect) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return next, say(PromptChannelTextEmpty)
	}
	next.ChannelText = t
	next.Step = StepConfirmText
	return next, say(PromptConfirmText)
}

func finish(s *Session) (*Session, []Effect) {
	l := s.Listing()
	if err := l.Validate(); err != nil {
		return nil, []Effect{Incomplete{ListingID: s.ListingID}}
	}
	return nil, []Effect{Preview{Listing: l}}
}

func text(ev Event) (string, bool) {
	t, ok := ev.(TextEvent)
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(t.Text)
	return v, v != ""
}

func say(p Prompt) []Effect { return []Effect{Say{Prompt: p}} }
