package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/repository"
)

var _ repository.DeliveryRepository = (*DeliveryRepo)(nil)

type DeliveryRepo struct {
	db *sql.DB
}

func NewDeliveryRepo(db *sql.DB) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// Record inserts d; a repeated charge ID leaves the ledger untouched and yields ErrAlreadyExists.
func (r *DeliveryRepo) Record(ctx context.Context, d *model.Delivery) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, charge_id, listing_id, buyer_id, mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(charge_id) DO NOTHING
	`, d.ID, d.ChargeID, d.ListingID, d.BuyerID, string(d.Mode), d.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("Record delivery: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *DeliveryRepo) FindByID(ctx context.Context, id string) (*model.Delivery, error) {
	var (
		d       model.Delivery
		mode    string
		created string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, charge_id, listing_id, buyer_id, mode, created_at
		FROM deliveries WHERE id = ?
	`, id).Scan(&d.ID, &d.ChargeID, &d.ListingID, &d.BuyerID, &mode, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID delivery: %w", err)
	}
	d.Mode = model.DeliveryMode(mode)
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("delivery %s created_at: %w", id, err)
	}
	return &d, nil
}
