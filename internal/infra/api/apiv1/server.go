// Package apiv1 serves the read-only admin inventory API under /api/v1.
package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
)

// ListingReader is the slice of the listing use case the API needs.
type ListingReader interface {
	All(ctx context.Context) ([]model.ListingSummary, error)
	Get(ctx context.Context, rawID string) (*model.Listing, error)
}

type Server struct {
	listings ListingReader
	log      *zerolog.Logger
}

func NewServer(listings ListingReader, log *zerolog.Logger) *Server {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Server{listings: listings, log: log}
}

// RegisterAPIV1 mounts the routes on r, each wrapped by guard (nil means open).
func RegisterAPIV1(r chi.Router, s *Server, guard func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		if guard != nil {
			r.Use(guard)
		}
		r.Get("/listings", s.listListings)
		r.Get("/listings/{id}", s.getListing)
	})
}

type ListingItem struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Preview string `json:"preview"`
}

type Listing struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Text         string   `json:"text"`
	ContactLink  string   `json:"contact_link"`
	PostURL      string   `json:"post_url,omitempty"`
	OriginalText string   `json:"original_text,omitempty"`
	DeliverMode  string   `json:"deliver_mode"`
	Photos       []string `json:"photos"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	if s.listings == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "listings not wired"})
		return
	}
	rows, err := s.listings.All(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("api: list listings")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	items := make([]ListingItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ListingItem{ID: row.ID, Status: string(row.Status), Preview: row.Preview})
	}
	writeJSON(w, http.StatusOK, struct {
		Items []ListingItem `json:"items"`
	}{Items: items})
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	if s.listings == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "listings not wired"})
		return
	}
	l, err := s.listings.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid listing id"})
		return
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "listing not found"})
		return
	case err != nil:
		s.log.Error().Err(err).Msg("api: get listing")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	photos := l.Photos
	if photos == nil {
		photos = []string{}
	}
	writeJSON(w, http.StatusOK, Listing{
		ID:           l.ID,
		Status:       string(l.Status),
		Text:         l.Text,
		ContactLink:  l.ContactLink,
		PostURL:      l.PostURL,
		OriginalText: l.OriginalText,
		DeliverMode:  string(l.DeliverMode),
		Photos:       photos,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
