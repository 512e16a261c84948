package repository

import (
	"context"

	"telegram-listing-bot/internal/domain/model"
)

// ListingRepository is the port for the listings table.
type ListingRepository interface {
	// Upsert inserts the listing or overwrites every non-key field of an existing one.
	Upsert(ctx context.Context, l *model.Listing) error
	// FindByID returns domain.ErrNotFound when no row exists.
	FindByID(ctx context.Context, id string) (*model.Listing, error)
	// Delete reports whether a row existed.
	Delete(ctx context.Context, id string) (bool, error)
	// SetStatus returns domain.ErrNotFound when no row exists.
	SetStatus(ctx context.Context, id string, status model.ListingStatus) error
	// ListAll returns every listing ordered case-insensitively by ID.
	ListAll(ctx context.Context) ([]model.ListingSummary, error)
}
