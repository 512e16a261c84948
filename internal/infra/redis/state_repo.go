package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"telegram-listing-bot/internal/domain/flow"
	"telegram-listing-bot/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps admin add-flow sessions in Redis. Keys carry no expiry;
// a session ends only on finish, cancel or restart.
type SessionRepo struct {
	client RedisClient
}

func NewSessionRepo(client RedisClient) *SessionRepo {
	return &SessionRepo{client: client}
}

func (s *SessionRepo) sessionKey(chatID int64) string {
	return fmt.Sprintf("add_flow:%d", chatID)
}

func (s *SessionRepo) SetSession(ctx context.Context, chatID int64, sess *flow.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.sessionKey(chatID), data, 0)
}

func (s *SessionRepo) GetSession(ctx context.Context, chatID int64) (*flow.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(chatID))
	if err != nil {
		return nil, err
	}
	var sess flow.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *SessionRepo) ClearSession(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, s.sessionKey(chatID))
}
