//go:build !integration

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
)

type updateSink struct {
	got []tgbotapi.Update
	err error
}

func (s *updateSink) HandleUpdate(_ context.Context, u tgbotapi.Update) error {
	s.got = append(s.got, u)
	return s.err
}

type oneListing struct{}

func (oneListing) All(context.Context) ([]model.ListingSummary, error) {
	return []model.ListingSummary{{ID: "A101", Status: model.ListingStatusDraft}}, nil
}

func (oneListing) Get(context.Context, string) (*model.Listing, error) { return nil, domain.ErrNotFound }

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := NewServer(Options{}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	if got := serve(s, req).Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("request id not propagated: %q", got)
	}
}

func TestServer_Metrics(t *testing.T) {
	rec := serve(NewServer(Options{}, nil), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestServer_Webhook(t *testing.T) {
	const body = `{"update_id":7,"message":{"message_id":1,"text":"A101","chat":{"id":5},"from":{"id":5}}}`

	t.Run("valid token hands the update over", func(t *testing.T) {
		sink := &updateSink{}
		s := NewServer(Options{WebhookToken: "123:abc", Updates: sink}, nil)
		rec := serve(s, httptest.NewRequest(http.MethodPost, "/webhook/123:abc", strings.NewReader(body)))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
		if len(sink.got) != 1 || sink.got[0].UpdateID != 7 || sink.got[0].Message.Text != "A101" {
			t.Fatalf("update = %+v", sink.got)
		}
	})

	t.Run("handler failure is still acknowledged", func(t *testing.T) {
		sink := &updateSink{err: errors.New("boom")}
		s := NewServer(Options{WebhookToken: "123:abc", Updates: sink}, nil)
		rec := serve(s, httptest.NewRequest(http.MethodPost, "/webhook/123:abc", strings.NewReader(body)))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		sink := &updateSink{}
		s := NewServer(Options{WebhookToken: "123:abc", Updates: sink}, nil)
		rec := serve(s, httptest.NewRequest(http.MethodPost, "/webhook/nope", strings.NewReader(body)))
		if rec.Code != http.StatusNotFound || len(sink.got) != 0 {
			t.Fatalf("got %d, updates=%d", rec.Code, len(sink.got))
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		s := NewServer(Options{WebhookToken: "123:abc", Updates: &updateSink{}}, nil)
		rec := serve(s, httptest.NewRequest(http.MethodPost, "/webhook/123:abc", strings.NewReader("{")))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("polling mode has no webhook route", func(t *testing.T) {
		s := NewServer(Options{}, nil)
		rec := serve(s, httptest.NewRequest(http.MethodPost, "/webhook/123:abc", strings.NewReader(body)))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})
}

func TestServer_AdminAPI(t *testing.T) {
	auth := NewAuthManager("secret", time.Minute)
	s := NewServer(Options{Listings: oneListing{}, Auth: auth}, nil)

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want 401, got %d", rec.Code)
	}

	tok, err := auth.Mint("100")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := serve(s, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "A101") {
		t.Fatalf("with token: %d %s", rec.Code, rec.Body.String())
	}

	off := NewServer(Options{Listings: oneListing{}}, nil)
	if rec := serve(off, httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("api without secret: want 404, got %d", rec.Code)
	}
}

func TestAuthManager(t *testing.T) {
	auth := NewAuthManager("secret", time.Minute)
	tok, err := auth.Mint("100")
	if err != nil {
		t.Fatal(err)
	}

	bearer := func(v string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if v != "" {
			r.Header.Set("Authorization", v)
		}
		return r
	}

	claims, err := auth.ParseFromRequest(bearer("bearer " + tok))
	if err != nil || claims.Subject != "100" || claims.Role != "admin" {
		t.Fatalf("claims=%+v err=%v", claims, err)
	}
	if _, err := auth.ParseFromRequest(bearer("")); !errors.Is(err, ErrMissingToken) {
		t.Errorf("no header: %v", err)
	}
	if _, err := auth.ParseFromRequest(bearer("Basic abc")); !errors.Is(err, ErrMissingToken) {
		t.Errorf("basic auth: %v", err)
	}
	if _, err := NewAuthManager("other", time.Minute).ParseFromRequest(bearer("Bearer " + tok)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: %v", err)
	}

	auth.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := auth.ParseFromRequest(bearer("Bearer " + tok)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: %v", err)
	}
}
