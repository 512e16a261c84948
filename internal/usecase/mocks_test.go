//go:build !integration

package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/flow"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/adapter"
)

const testAdminID int64 = 100

var nopLog = zerolog.Nop()

// memListingRepo is a small in-memory implementation used by unit tests.
type memListingRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.Listing
	upsertErr error
	upserts   int
}

func newMemListingRepo() *memListingRepo {
	return &memListingRepo{store: make(map[string]*model.Listing)}
}

func (m *memListingRepo) Upsert(_ context.Context, l *model.Listing) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if err := l.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	cp.Photos = append([]string(nil), l.Photos...)
	if cp.Status == "" {
		cp.Status = model.ListingStatusDraft
	}
	m.store[l.ID] = &cp
	m.upserts++
	return nil
}

func (m *memListingRepo) FindByID(_ context.Context, id string) (*model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	cp.Photos = append([]string(nil), l.Photos...)
	return &cp, nil
}

func (m *memListingRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.store[id]
	delete(m.store, id)
	return ok, nil
}

func (m *memListingRepo) SetStatus(_ context.Context, id string, s model.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = s
	return nil
}

func (m *memListingRepo) ListAll(_ context.Context) ([]model.ListingSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ListingSummary
	for _, l := range m.store {
		out = append(out, model.ListingSummary{ID: l.ID, Status: l.Status, Preview: model.Shorten(l.Text, 60)})
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].ID) < strings.ToLower(out[j].ID) })
	return out, nil
}

type memDeliveryRepo struct {
	mu      sync.Mutex
	byCharg map[string]*model.Delivery
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{byCharg: make(map[string]*model.Delivery)}
}

func (m *memDeliveryRepo) Record(_ context.Context, d *model.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCharg[d.ChargeID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *d
	m.byCharg[d.ChargeID] = &cp
	return nil
}

func (m *memDeliveryRepo) FindByID(_ context.Context, id string) (*model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.byCharg {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memSessionRepo struct {
	mu sync.Mutex
	m  map[int64]*flow.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: make(map[int64]*flow.Session)}
}

func (r *memSessionRepo) SetSession(_ context.Context, chatID int64, s *flow.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.Photos = append([]string(nil), s.Photos...)
	r.m[chatID] = &cp
	return nil
}

func (r *memSessionRepo) GetSession(_ context.Context, chatID int64) (*flow.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	cp.Photos = append([]string(nil), s.Photos...)
	return &cp, nil
}

func (r *memSessionRepo) ClearSession(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, chatID)
	return nil
}

// sent is one outbound call recorded by fakeBot.
type sent struct {
	Kind    string // message | photo | album | invoice | precheckout
	To      adapter.ChatTarget
	Text    string
	FileID  string
	Photos  []adapter.Photo
	Rows    [][]adapter.InlineButton
	Invoice adapter.Invoice
	OK      bool
}

type fakeBot struct {
	mu   sync.Mutex
	sent []sent
	// failKind makes every call of that kind fail.
	failKind string
	// failAt makes the n-th call (1-based, any kind) fail.
	failAt int
	// failFirst makes the first n calls fail.
	failFirst int
	calls     int
}

func (b *fakeBot) record(s sent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if s.Kind == b.failKind || (b.failAt > 0 && b.calls == b.failAt) || b.calls <= b.failFirst {
		return fmt.Errorf("telegram: %s rejected", s.Kind)
	}
	b.sent = append(b.sent, s)
	return nil
}

func (b *fakeBot) SendMessage(_ context.Context, to adapter.ChatTarget, text string, rows [][]adapter.InlineButton) error {
	return b.record(sent{Kind: "message", To: to, Text: text, Rows: rows})
}

func (b *fakeBot) SendPhoto(_ context.Context, to adapter.ChatTarget, fileID, caption string, rows [][]adapter.InlineButton) error {
	return b.record(sent{Kind: "photo", To: to, FileID: fileID, Text: caption, Rows: rows})
}

func (b *fakeBot) SendMediaGroup(_ context.Context, to adapter.ChatTarget, photos []adapter.Photo) error {
	return b.record(sent{Kind: "album", To: to, Photos: append([]adapter.Photo(nil), photos...)})
}

func (b *fakeBot) SendInvoice(_ context.Context, chatID int64, inv adapter.Invoice) error {
	return b.record(sent{Kind: "invoice", To: adapter.Chat(chatID), Invoice: inv})
}

func (b *fakeBot) AnswerPreCheckout(_ context.Context, queryID string, ok bool, msg string) error {
	return b.record(sent{Kind: "precheckout", Text: queryID + "|" + msg, OK: ok})
}

func (b *fakeBot) BotUsername() string { return "listing_test_bot" }

func (b *fakeBot) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sent))
	for i, s := range b.sent {
		out[i] = s.Kind
	}
	return out
}

func (b *fakeBot) last() sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return sent{}
	}
	return b.sent[len(b.sent)-1]
}

func (b *fakeBot) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
	b.calls = 0
}

// keyTranslator renders "key" or "key|arg1|arg2" so tests can assert on keys and arguments.
type keyTranslator struct{}

func (keyTranslator) T(key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	parts := []string{key}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, "|")
}

type stubLimiter struct {
	allow bool
	hits  int
}

func (s *stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	s.hits++
	return s.allow, nil
}

func hasPrefix(s, key string) bool { return s == key || strings.HasPrefix(s, key+"|") }

func buttonData(rows [][]adapter.InlineButton) []string {
	var out []string
	for _, r := range rows {
		for _, b := range r {
			if b.Data != "" {
				out = append(out, b.Data)
			} else {
				out = append(out, b.URL)
			}
		}
	}
	return out
}
