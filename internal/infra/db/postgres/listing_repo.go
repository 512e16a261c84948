package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.ListingRepository = (*ListingRepo)(nil)

const previewRunes = 60

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func (r *ListingRepo) Upsert(ctx context.Context, l *model.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	status := l.Status
	if status == "" {
		status = model.ListingStatusDraft
	}
	photos, err := json.Marshal(nonNil(l.Photos))
	if err != nil {
		return fmt.Errorf("encode photos: %w", err)
	}
	const sql = `
INSERT INTO listings (id, text, link, post_url, deliver_mode, orig_text, photos, status)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
ON CONFLICT (id) DO UPDATE
  SET text         = EXCLUDED.text,
      link         = EXCLUDED.link,
      post_url     = EXCLUDED.post_url,
      deliver_mode = EXCLUDED.deliver_mode,
      orig_text    = EXCLUDED.orig_text,
      photos       = EXCLUDED.photos,
      status       = EXCLUDED.status;
`
	_, err = r.pool.Exec(ctx, sql,
		l.ID, l.Text, l.ContactLink, l.PostURL, string(l.DeliverMode), l.OriginalText, string(photos), string(status),
	)
	if err != nil {
		return fmt.Errorf("Upsert listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	const sql = `
SELECT id, text, link, post_url, deliver_mode, orig_text, photos::text, status
  FROM listings
 WHERE id = $1;
`
	var (
		l      model.Listing
		mode   string
		status string
		photos string
	)
	err := r.pool.QueryRow(ctx, sql, id).Scan(
		&l.ID, &l.Text, &l.ContactLink, &l.PostURL, &mode, &l.OriginalText, &photos, &status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID listing: %w", err)
	}
	l.DeliverMode = model.DeliverMode(mode)
	l.Status = model.ListingStatus(status)
	if err := json.Unmarshal([]byte(photos), &l.Photos); err != nil {
		return nil, fmt.Errorf("decode photos of %s: %w", id, err)
	}
	return &l, nil
}

func (r *ListingRepo) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1;`, id)
	if err != nil {
		return false, fmt.Errorf("Delete listing: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *ListingRepo) SetStatus(ctx context.Context, id string, status model.ListingStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidArgument
	}
	ct, err := r.pool.Exec(ctx, `UPDATE listings SET status = $2 WHERE id = $1;`, id, string(status))
	if err != nil {
		return fmt.Errorf("SetStatus listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ListingRepo) ListAll(ctx context.Context) ([]model.ListingSummary, error) {
	const sql = `
SELECT id, status, text
  FROM listings
 ORDER BY lower(id), id;
`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("ListAll listings: %w", err)
	}
	defer rows.Close()

	var out []model.ListingSummary
	for rows.Next() {
		var id, status, text string
		if err := rows.Scan(&id, &status, &text); err != nil {
			return nil, err
		}
		out = append(out, model.ListingSummary{
			ID:      id,
			Status:  model.ListingStatus(status),
			Preview: model.Shorten(text, previewRunes),
		})
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
