// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	stdlog "github.com/rs/zerolog/log"

	"telegram-listing-bot/internal/application"
	"telegram-listing-bot/internal/config"
	"telegram-listing-bot/internal/domain/ports/adapter"
	"telegram-listing-bot/internal/domain/ports/repository"
	tele "telegram-listing-bot/internal/infra/adapters/telegram"
	"telegram-listing-bot/internal/infra/api"
	"telegram-listing-bot/internal/infra/db"
	"telegram-listing-bot/internal/infra/i18n"
	"telegram-listing-bot/internal/infra/logging"
	"telegram-listing-bot/internal/infra/memory"
	"telegram-listing-bot/internal/infra/metrics"
	red "telegram-listing-bot/internal/infra/redis"
	"telegram-listing-bot/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		var missing *config.MissingError
		if errors.As(err, &missing) {
			stdlog.Fatal().Strs("keys", missing.Keys).Msg("required configuration missing")
		}
		stdlog.Fatal().Err(err).Msg("config")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().Str("version", version).Str("mode", cfg.Bot.Mode).Bool("demo", cfg.Payment.DemoMode()).Msg("starting")

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Lang)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Listing store (store.Listings stays uncached for payment checks) ----
	store, err := db.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}
	defer store.Close()
	listings := store.Listings

	// ---- Sessions (Redis when configured) ----
	var (
		sessions repository.SessionRepository
		locks    repository.SessionLocker
		limiter  usecase.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		sessions = red.NewSessionRepo(redisClient)
		locks = red.NewSessionLocker(redisClient, logger)
		limiter = red.NewRateLimiter(redisClient)
		listings = red.NewListingRepoCacheDecorator(listings, redisClient, cfg.Redis.CacheTTL, logger)
		logger.Info().Msg("sessions: redis")
	} else {
		sessions = memory.NewSessionRepo()
		locks = memory.NewChatLocks()
		logger.Info().Msg("sessions: in-process")
	}

	channelID, channelName, err := cfg.Channel.Target()
	if err != nil {
		logger.Fatal().Err(err).Msg("channel")
	}
	channel := adapter.ChatTarget{ID: channelID, Username: channelName}

	// ---- Telegram ----
	botAdapter, err := tele.NewRealTelegramBotAdapter(cfg, tr, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}

	// ---- Use cases ----
	adminID := cfg.Bot.AdminID
	listingUC := usecase.NewListingUseCase(listings, botAdapter, tr, adminID, logger)
	addFlowUC := usecase.NewAddFlowUseCase(sessions, locks, listings, botAdapter, tr, adminID, logger)
	publishUC := usecase.NewPublishUseCase(listings, botAdapter, tr, channel, adminID, logger)
	purchaseUC := usecase.NewPurchaseUseCase(listings, store.Listings, store.Deliveries, botAdapter, tr, limiter, usecase.PurchaseConfig{
		Price:           cfg.Payment.Price,
		Currency:        cfg.Payment.Currency,
		Demo:            cfg.Payment.DemoMode(),
		SupportUsername: cfg.Bot.AdminUsername,
	}, logger)

	// ---- Facade ----
	facade := application.NewBotFacade(listingUC, addFlowUC, publishUC, purchaseUC, adminID, func() string {
		return tr.T("help_admin")
	})

	var auth *api.AuthManager
	if cfg.HTTP.AdminAPISecret != "" {
		auth = api.NewAuthManager(cfg.HTTP.AdminAPISecret, cfg.HTTP.AdminTokenTTL)
		botAdapter.Bind(facade, auth)
	} else {
		botAdapter.Bind(facade, nil)
	}

	// ---- HTTP: health, metrics, webhook, admin API ----
	opts := api.Options{Port: cfg.HTTP.Port, Listings: listingUC, Auth: auth}
	if cfg.Bot.Mode == "webhook" {
		opts.WebhookToken = cfg.Bot.Token
		opts.Updates = botAdapter
	}
	server := api.NewServer(opts, logger)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	if cfg.Bot.Mode == "webhook" {
		if err := botAdapter.RegisterWebhook(cfg.Bot.WebhookURL, cfg.Bot.Token); err != nil {
			logger.Fatal().Err(err).Msg("webhook")
		}
		logger.Info().Str("base_url", cfg.Bot.WebhookURL).Msg("webhook registered")
	} else {
		go func() {
			if err := botAdapter.StartPolling(ctx); err != nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
				stop()
			}
		}()
	}

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	botAdapter.StopPolling()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
}
