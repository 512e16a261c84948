package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/repository"
	"telegram-listing-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ repository.ListingRepository = (*listingRepoCacheDecorator)(nil)

// listingRepoCacheDecorator caches FindByID for buyer lookups. Writes go to
// the inner store first, bump writes and then drop the cached copy. A read
// that overlapped a write does not fill the cache, so a row deleted meanwhile
// cannot come back from Redis.
type listingRepoCacheDecorator struct {
	inner  repository.ListingRepository
	cache  RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
	writes uint64
}

func NewListingRepoCacheDecorator(inner repository.ListingRepository, cache RedisClient, ttl time.Duration, log *zerolog.Logger) repository.ListingRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &listingRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: log}
}

func listingKey(id string) string { return fmt.Sprintf("listing:%s", id) }

type cachedListing struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	ContactLink  string   `json:"link"`
	PostURL      string   `json:"post_url"`
	OriginalText string   `json:"orig_text"`
	DeliverMode  string   `json:"deliver_mode"`
	Photos       []string `json:"photos"`
	Status       string   `json:"status"`
}

func (d *listingRepoCacheDecorator) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	val, err := d.cache.Get(ctx, listingKey(id))
	if err == nil {
		var c cachedListing
		if json.Unmarshal([]byte(val), &c) == nil {
			metrics.IncCacheRequest("listing", "hit")
			return &model.Listing{
				ID: c.ID, Text: c.Text, ContactLink: c.ContactLink, PostURL: c.PostURL,
				OriginalText: c.OriginalText, DeliverMode: model.DeliverMode(c.DeliverMode),
				Photos: c.Photos, Status: model.ListingStatus(c.Status),
			}, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		d.log.Warn().Err(err).Str("listing_id", id).Msg("listing cache read failed")
	}

	metrics.IncCacheRequest("listing", "miss")
	seen := atomic.LoadUint64(&d.writes)
	l, err := d.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if atomic.LoadUint64(&d.writes) != seen {
		return l, nil
	}
	b, _ := json.Marshal(cachedListing{
		ID: l.ID, Text: l.Text, ContactLink: l.ContactLink, PostURL: l.PostURL,
		OriginalText: l.OriginalText, DeliverMode: string(l.DeliverMode),
		Photos: l.Photos, Status: string(l.Status),
	})
	if err := d.cache.Set(ctx, listingKey(id), b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("listing_id", id).Msg("listing cache write failed")
	}
	return l, nil
}

func (d *listingRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	atomic.AddUint64(&d.writes, 1)
	if err := d.cache.Del(ctx, listingKey(id)); err != nil {
		d.log.Warn().Err(err).Str("listing_id", id).Msg("listing cache invalidation failed")
	}
}

func (d *listingRepoCacheDecorator) Upsert(ctx context.Context, l *model.Listing) error {
	if err := d.inner.Upsert(ctx, l); err != nil {
		return err
	}
	d.invalidate(ctx, l.ID)
	return nil
}

func (d *listingRepoCacheDecorator) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := d.inner.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	d.invalidate(ctx, id)
	return existed, nil
}

func (d *listingRepoCacheDecorator) SetStatus(ctx context.Context, id string, status model.ListingStatus) error {
	if err := d.inner.SetStatus(ctx, id, status); err != nil {
		return err
	}
	d.invalidate(ctx, id)
	return nil
}

func (d *listingRepoCacheDecorator) ListAll(ctx context.Context) ([]model.ListingSummary, error) {
	return d.inner.ListAll(ctx)
}
