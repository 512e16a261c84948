package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/ports/adapter"
)

// Callback data shared between the keyboards built here and the Telegram router.
const (
	CBGetContact       = "get_contact"
	CBConfirmPrefix    = "confirm:"
	CBPayPrefix        = "pay:"
	CBRedeliverPrefix  = "redeliver:"
	CBPublishPrefix    = "publish:"
	CBRestart          = "restart"
	CBConfirmDelPrefix = "confirm_del:"
	CBCancelDel        = "cancel_del"
)

// RateLimiter throttles buyer lookups. A nil limiter allows everything.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func requireAdmin(actorID, adminID int64) error {
	if adminID == 0 || actorID != adminID {
		return domain.ErrUnauthorized
	}
	return nil
}

// supportRow returns the support button row, or nil when no support contact is configured.
func supportRow(tr adapter.Translator, username string) []adapter.InlineButton {
	if username == "" {
		return nil
	}
	return []adapter.InlineButton{{Text: tr.T("btn_support"), URL: "https://t.me/" + username}}
}

func rows(rs ...[]adapter.InlineButton) [][]adapter.InlineButton {
	out := make([][]adapter.InlineButton, 0, len(rs))
	for _, r := range rs {
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// FormatPrice renders minor units as "19 CZK" or "19.50 CZK" with thousands separators.
func FormatPrice(minor int, currency string) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	whole, frac := minor/100, minor%100

	s := strconv.Itoa(whole)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	pre := len(s) % 3
	if pre == 0 {
		pre = 3
	}
	b.WriteString(s[:pre])
	for i := pre; i < len(s); i += 3 {
		b.WriteString(",")
		b.WriteString(s[i : i+3])
	}
	if frac != 0 {
		b.WriteString(".")
		if frac < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.Itoa(frac))
	}
	if currency != "" {
		b.WriteString(" ")
		b.WriteString(strings.ToUpper(currency))
	}
	return b.String()
}
