package repository

import "context"

// SessionLocker serializes read-modify-write cycles on one chat's add-flow session.
type SessionLocker interface {
	// Lock blocks until the chat is free or ctx is done. The returned func releases it.
	Lock(ctx context.Context, chatID int64) (unlock func(), err error)
}
