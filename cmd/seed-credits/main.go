package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/cardhaven/cardhaven-backend/internal/catalog"
	"github.com/cardhaven/cardhaven-backend/pkg/config"
	"github.com/cardhaven/cardhaven-backend/pkg/db"
	"github.com/cardhaven/cardhaven-backend/pkg/logger"
	"github.com/cardhaven/cardhaven-backend/pkg/migrate"
)

// The standard denominations, in minor units.
var denominations = []int64{1000, 10000, 100000}

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed-credits"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed-credits",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	cards := catalog.NewRepository(dbClient.DB())
	for _, denomination := range denominations {
		card, err := cards.EnsureCreditCard(ctx, denomination)
		if err != nil {
			logg.Error(logg.WithField(ctx, "denomination_cents", denomination), "failed to ensure credit card", err)
			os.Exit(1)
		}
		seedCtx := logg.WithFields(ctx, map[string]any{
			"card_id":            card.ID.String(),
			"denomination_cents": denomination,
			"name":               card.Name,
		})
		logg.Info(seedCtx, "credit denomination ready")
	}

	logg.Info(ctx, "credit denominations seeded")
}
