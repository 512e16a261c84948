// Command seed fills the configured listing store with sample listings and can
// publish them, either for real or through the logging adapter (-dry-run).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	stdlog "github.com/rs/zerolog/log"

	"telegram-listing-bot/internal/config"
	"telegram-listing-bot/internal/domain"
	"telegram-listing-bot/internal/domain/model"
	"telegram-listing-bot/internal/domain/ports/adapter"
	tele "telegram-listing-bot/internal/infra/adapters/telegram"
	"telegram-listing-bot/internal/infra/db"
	"telegram-listing-bot/internal/infra/i18n"
	"telegram-listing-bot/internal/infra/logging"
	"telegram-listing-bot/internal/usecase"
)

var samples = []model.Listing{
	{
		ID:           "A101",
		Text:         "Two-room flat, 54 m², 5 min from the metro. 18 000 CZK/month.",
		ContactLink:  "https://t.me/example_owner_a101",
		OriginalText: "Two-room flat, 54 m², renovated kitchen, balcony, 5 min from the metro. Available from the 1st. 18 000 CZK/month plus utilities.",
		DeliverMode:  model.DeliverModeText,
	},
	{
		ID:          "B7",
		Text:        "Studio with a garden view, pets welcome. 12 500 CZK/month.",
		ContactLink: "+420 600 000 007",
		PostURL:     "https://example.com/posts/b7",
		DeliverMode: model.DeliverModeText,
	},
	{
		ID:          "C33",
		Text:        "Room in a shared flat for a student, all bills included. 7 900 CZK/month.",
		ContactLink: "https://t.me/example_owner_c33",
		DeliverMode: model.DeliverModeText,
	},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	force := flag.Bool("force", false, "overwrite listings that already exist")
	publish := flag.Bool("publish", false, "publish every seeded listing to the channel")
	dryRun := flag.Bool("dry-run", false, "log channel posts instead of sending them")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, true)
	if err != nil {
		stdlog.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := db.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}
	defer store.Close()

	var seeded []string
	for i := range samples {
		l := samples[i]
		_, err := store.Listings.FindByID(ctx, l.ID)
		switch {
		case err == nil && !*force:
			fmt.Printf("  - %s already present, skipped\n", l.ID)
			continue
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			logger.Fatal().Err(err).Str("id", l.ID).Msg("lookup")
		}
		l.Status = model.ListingStatusDraft
		if err := store.Listings.Upsert(ctx, &l); err != nil {
			logger.Fatal().Err(err).Str("id", l.ID).Msg("upsert")
		}
		seeded = append(seeded, l.ID)
		fmt.Printf("seeded: %s (%s)\n", l.ID, model.Shorten(l.Text, 40))
	}

	if !*publish || len(seeded) == 0 {
		fmt.Println("✅ Seeding complete.")
		return
	}

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Lang)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	channelID, channelName, err := cfg.Channel.Target()
	if err != nil {
		logger.Fatal().Err(err).Msg("channel")
	}

	var bot adapter.TelegramBotAdapter
	if *dryRun {
		bot = tele.NewNoopBotAdapter("listing_bot", logger)
	} else {
		rb, err := tele.NewRealTelegramBotAdapter(cfg, tr, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		bot = rb
	}

	publishUC := usecase.NewPublishUseCase(store.Listings, bot, tr,
		adapter.ChatTarget{ID: channelID, Username: channelName}, cfg.Bot.AdminID, logger)
	for _, id := range seeded {
		if err := publishUC.Publish(ctx, cfg.Bot.AdminID, id); err != nil {
			logger.Error().Err(err).Str("id", id).Msg("publish")
			continue
		}
		fmt.Printf("published: %s\n", id)
	}
	fmt.Println("✅ Seeding complete.")
}
