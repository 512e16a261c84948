package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		botUpdatesTotal,
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		listingsPublishedTotal,
		adminCommandTotal,
	)
}

var (
	botUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Incoming Telegram updates by kind.",
		},
		[]string{"kind"}, // message|photo|callback|pre_checkout|payment|other
	)

	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming commands.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times buyers have been rate-limited.",
		},
	)

	listingsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_published_total",
			Help: "Channel publish attempts by result.",
		},
		[]string{"result"}, // ok|failed|not_found
	)

	adminCommandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_command_total",
			Help: "Admin-only commands and buttons, split by whether the sender was the admin.",
		},
		[]string{"command", "status"}, // authorized|unauthorized
	)
)

func IncUpdate(kind string) {
	botUpdatesTotal.WithLabelValues(norm(kind)).Inc()
}

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncPublish(result string) {
	listingsPublishedTotal.WithLabelValues(norm(result)).Inc()
}

// IncAdminCommand counts an admin-only action. Command and callback names share one label.
func IncAdminCommand(command, status string) {
	adminCommandTotal.WithLabelValues(strings.TrimPrefix(norm(command), "/"), norm(status)).Inc()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
