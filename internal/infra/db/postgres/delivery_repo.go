package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.DeliveryRepository = (*DeliveryRepo)(nil)

const uniqueViolation = "23505"

type DeliveryRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveryRepo(pool *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

func (r *DeliveryRepo) Record(ctx context.Context, d *model.Delivery) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deliveries (id, charge_id, listing_id, buyer_id, mode, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, d.ID, d.ChargeID, d.ListingID, d.BuyerID, string(d.Mode), d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("Record delivery: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) FindByID(ctx context.Context, id string) (*model.Delivery, error) {
	var (
		d    model.Delivery
		mode string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, charge_id, listing_id, buyer_id, mode, created_at
		FROM deliveries WHERE id = $1
	`, id).Scan(&d.ID, &d.ChargeID, &d.ListingID, &d.BuyerID, &mode, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID delivery: %w", err)
	}
	d.Mode = model.DeliveryMode(mode)
	return &d, nil
}
