package model

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"telegram-listing-bot/internal/domain"
)

// ListingStatus is the publication state of a listing.
type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "DRAFT"
	ListingStatusPublished ListingStatus = "PUBLISHED"
)

func (s ListingStatus) Valid() bool {
	return s == ListingStatusDraft || s == ListingStatusPublished
}

// DeliverMode says what a buyer receives after paying. Only TEXT (original text + contact) exists today.
type DeliverMode string

const DeliverModeText DeliverMode = "TEXT"

// MaxPhotos is the per-listing photo cap (a Telegram album holds at most 10 items; one is left for the text post).
const MaxPhotos = 9

var listingIDRe = regexp.MustCompile(`^[A-Za-z]\d+$`)

// NormalizeID trims and upper-cases a user supplied listing ID.
// The second result is false when the input does not look like "A101".
func NormalizeID(raw string) (string, bool) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if !listingIDRe.MatchString(id) {
		return "", false
	}
	return id, true
}

// Listing is a classified ad sold through the channel.
type Listing struct {
	ID           string
	Text         string // channel-facing text
	ContactLink  string
	PostURL      string // optional public link to the original post
	OriginalText string // optional full text of the original post
	DeliverMode  DeliverMode
	Photos       []string // Telegram file IDs, in upload order
	Status       ListingStatus
}

// Validate reports ErrValidationIncomplete when a required field is empty.
func (l *Listing) Validate() error {
	if l == nil {
		return domain.ErrValidationIncomplete
	}
	if strings.TrimSpace(l.ID) == "" ||
		strings.TrimSpace(l.Text) == "" ||
		strings.TrimSpace(l.ContactLink) == "" ||
		l.DeliverMode == "" {
		return domain.ErrValidationIncomplete
	}
	if len(l.Photos) > MaxPhotos {
		return domain.ErrInvalidArgument
	}
	if l.Status != "" && !l.Status.Valid() {
		return domain.ErrInvalidArgument
	}
	return nil
}

// ResolvedText is what the buyer receives: the original text when recorded, else the channel text.
func (l *Listing) ResolvedText() string {
	if t := strings.TrimSpace(l.OriginalText); t != "" {
		return t
	}
	return l.Text
}

func (l *Listing) IsPublished() bool { return l != nil && l.Status == ListingStatusPublished }

// ListingSummary is a row of the admin listing overview.
type ListingSummary struct {
	ID      string
	Status  ListingStatus
	Preview string
}

// Shorten cuts s to at most n runes, appending an ellipsis when something was dropped.
func Shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

// RuneLen counts characters the way Telegram counts caption length.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }
