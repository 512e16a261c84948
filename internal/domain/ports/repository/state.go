package repository

import (
	"context"

	"telegram-listing-bot/internal/domain/flow"
)

// SessionRepository is the port for the admin add-flow state, keyed by chat ID.
type SessionRepository interface {
	SetSession(ctx context.Context, chatID int64, s *flow.Session) error
	// GetSession returns domain.ErrNotFound when the chat has no session.
	GetSession(ctx context.Context, chatID int64) (*flow.Session, error)
	ClearSession(ctx context.Context, chatID int64) error
}
