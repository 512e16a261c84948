package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/infra/api/apiv1"
	"telegram-listing-bot/internal/infra/logging"
)

// UpdateHandler processes one Telegram update. The bot adapter implements it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

type Options struct {
	Port int
	// WebhookToken enables POST /webhook/{token} when set together with Updates.
	WebhookToken string
	Updates      UpdateHandler
	// Listings and Auth enable /api/v1. Both are required.
	Listings apiv1.ListingReader
	Auth     *AuthManager
}

// Server hosts health, metrics, the Telegram webhook and the admin API.
type Server struct {
	opts   Options
	log    *zerolog.Logger
	router chi.Router
	http   *http.Server
}

func NewServer(opts Options, log *zerolog.Logger) *Server {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	s := &Server{opts: opts, log: log}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.opts.Updates != nil && s.opts.WebhookToken != "" {
		r.With(Timeout(30*time.Second)).Post("/webhook/{token}", s.handleWebhook)
	}
	if s.opts.Listings != nil && s.opts.Auth != nil {
		apiv1.RegisterAPIV1(r, apiv1.NewServer(s.opts.Listings, s.log), s.opts.Auth.RequireAdmin)
	}
	return r
}

// handleWebhook acknowledges every well-formed update with 200 once it is handled,
// so Telegram does not redeliver updates whose handling failed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.WebhookToken)) != 1 {
		http.NotFound(w, r)
		return
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	if err := s.opts.Updates.HandleUpdate(r.Context(), update); err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Int("update_id", update.UpdateID).Msg("webhook update failed")
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }
