package memory

import (
	"context"
	"sync"

	"telegram-listing-bot/internal/domain/ports/repository"
)

var _ repository.SessionLocker = (*ChatLocks)(nil)

// ChatLocks is a per-chat mutex. Entries live only while someone holds or waits for them.
type ChatLocks struct {
	mu sync.Mutex
	m  map[int64]*chatLock
}

type chatLock struct {
	sem  chan struct{}
	refs int
}

func NewChatLocks() *ChatLocks {
	return &ChatLocks{m: make(map[int64]*chatLock)}
}

// Lock blocks until chatID is free or ctx is done.
func (l *ChatLocks) Lock(ctx context.Context, chatID int64) (func(), error) {
	l.mu.Lock()
	cl, ok := l.m[chatID]
	if !ok {
		cl = &chatLock{sem: make(chan struct{}, 1)}
		l.m[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(chatID, cl)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-cl.sem
			l.release(chatID, cl)
		})
	}, nil
}

func (l *ChatLocks) release(chatID int64, cl *chatLock) {
	l.mu.Lock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.m, chatID)
	}
	l.mu.Unlock()
}
