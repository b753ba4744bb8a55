// Command recover resolves stock holds left behind by interrupted checkouts
// once and exits. The server runs the same job on a timer.
package main

import (
	"context"
	"flag"
	"time"

	"bookstore-be/internal/catalog"
	"bookstore-be/internal/cart"
	"bookstore-be/internal/checkout"
	"bookstore-be/internal/config"
	"bookstore-be/internal/db"
	"bookstore-be/internal/events"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/order"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	staleAfter := flag.Duration("stale-after", cfg.HoldStaleAfter, "only resolve holds older than this")
	timeout := flag.Duration("timeout", time.Minute, "overall deadline")
	flag.Parse()

	database := db.InitDB(cfg)
	defer database.Close()

	catalogRepo := catalog.NewRepository(database)
	svc := checkout.NewService(
		cart.NewRepository(database),
		catalog.NewService(catalogRepo, nil, cfg.Defaults.Category),
		catalogRepo,
		order.NewRepository(database),
		events.NewNoop(),
		checkout.Options{
			Pricing:        checkout.NewPricing(cfg.Pricing),
			RetryAttempts:  cfg.CheckoutRetryAttempts,
			HoldStaleAfter: *staleAfter,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := svc.Recover(ctx)
	if err != nil {
		logger.L().Fatal("hold recovery incomplete",
			zap.Int("settled", report.Settled),
			zap.Int("released", report.Released),
			zap.Error(err),
		)
	}
	logger.L().Info("hold recovery finished",
		zap.Int("settled", report.Settled),
		zap.Int("released", report.Released),
		zap.Int("units", report.Units),
	)
}
