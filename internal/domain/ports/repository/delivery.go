package repository

import (
	"context"

	"telegram-listing-bot/internal/domain/model"
)

// DeliveryRepository keeps the ledger of released listings.
type DeliveryRepository interface {
	// Record stores d. It returns domain.ErrAlreadyExists when d.ChargeID was recorded before.
	Record(ctx context.Context, d *model.Delivery) error
	// FindByID returns domain.ErrNotFound for an unknown delivery ID.
	FindByID(ctx context.Context, id string) (*model.Delivery, error)
}
