package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/domain/ports/repository"
)

var _ repository.SessionLocker = (*SessionLocker)(nil)

// SessionLocker is a per-chat lock held in Redis as a SET NX key owned by a random token.
type SessionLocker struct {
	client RedisClient
	ttl    time.Duration
	retry  time.Duration
	log    *zerolog.Logger
}

func NewSessionLocker(client RedisClient, log *zerolog.Logger) *SessionLocker {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &SessionLocker{client: client, ttl: 30 * time.Second, retry: 25 * time.Millisecond, log: log}
}

func lockKey(chatID int64) string { return fmt.Sprintf("add_flow_lock:%d", chatID) }

// Lock polls until the key is free or ctx is done. The key expires after ttl
// so a crashed holder cannot block the chat forever.
func (l *SessionLocker) Lock(ctx context.Context, chatID int64) (func(), error) {
	key := lockKey(chatID)
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func() { l.unlock(key, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *SessionLocker) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	released, err := l.client.DelIfEqual(ctx, key, token)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("session unlock failed")
		return
	}
	if !released {
		l.log.Warn().Str("key", key).Msg("session lock expired before unlock")
	}
}
