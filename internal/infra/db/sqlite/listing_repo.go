package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/repository"
)

var _ repository.ListingRepository = (*ListingRepo)(nil)

const previewRunes = 60

type ListingRepo struct {
	db *sql.DB
}

func NewListingRepo(db *sql.DB) *ListingRepo {
	return &ListingRepo{db: db}
}

func (r *ListingRepo) Upsert(ctx context.Context, l *model.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	status := l.Status
	if status == "" {
		status = model.ListingStatusDraft
	}
	photos := l.Photos
	if photos == nil {
		photos = []string{}
	}
	b, err := json.Marshal(photos)
	if err != nil {
		return fmt.Errorf("encode photos: %w", err)
	}
	const q = `
INSERT INTO listings (id, text, link, post_url, deliver_mode, orig_text, photos, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    text         = excluded.text,
    link         = excluded.link,
    post_url     = excluded.post_url,
    deliver_mode = excluded.deliver_mode,
    orig_text    = excluded.orig_text,
    photos       = excluded.photos,
    status       = excluded.status;
`
	_, err = r.db.ExecContext(ctx, q,
		l.ID, l.Text, l.ContactLink, l.PostURL, string(l.DeliverMode), l.OriginalText, string(b), string(status))
	if err != nil {
		return fmt.Errorf("Upsert listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	const q = `
SELECT id, text, link, post_url, deliver_mode, orig_text, photos, status
  FROM listings
 WHERE id = ?;
`
	var (
		l      model.Listing
		mode   string
		status string
		photos string
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&l.ID, &l.Text, &l.ContactLink, &l.PostURL, &mode, &l.OriginalText, &photos, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID listing: %w", err)
	}
	l.DeliverMode = model.DeliverMode(mode)
	l.Status = model.ListingStatus(status)
	if photos == "" {
		photos = "[]"
	}
	if err := json.Unmarshal([]byte(photos), &l.Photos); err != nil {
		return nil, fmt.Errorf("decode photos of %s: %w", id, err)
	}
	return &l, nil
}

func (r *ListingRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?;`, id)
	if err != nil {
		return false, fmt.Errorf("Delete listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ListingRepo) SetStatus(ctx context.Context, id string, status model.ListingStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidArgument
	}
	res, err := r.db.ExecContext(ctx, `UPDATE listings SET status = ? WHERE id = ?;`, string(status), id)
	if err != nil {
		return fmt.Errorf("SetStatus listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ListingRepo) ListAll(ctx context.Context) ([]model.ListingSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, status, text FROM listings ORDER BY id COLLATE NOCASE;`)
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
