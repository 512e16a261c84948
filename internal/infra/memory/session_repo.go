// Package memory holds the in-process session store and chat locks used when Redis is not configured.
package memory

import (
	"context"
	"sync"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/flow"
	"telegram-listing-bot/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps add-flow sessions until they are completed, cancelled or restarted.
type SessionRepo struct {
	mu sync.Mutex
	m  map[int64]*flow.Session
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{m: make(map[int64]*flow.Session)}
}

func (r *SessionRepo) SetSession(_ context.Context, chatID int64, s *flow.Session) error {
	if s == nil {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	r.m[chatID] = s.Clone()
	r.mu.Unlock()
	return nil
}

// GetSession returns a copy of the stored session.
func (r *SessionRepo) GetSession(_ context.Context, chatID int64) (*flow.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *SessionRepo) ClearSession(_ context.Context, chatID int64) error {
	r.mu.Lock()
	delete(r.m, chatID)
	r.mu.Unlock()
	return nil
}
