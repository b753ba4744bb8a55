package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bookstore-be/internal/cache"
	"bookstore-be/internal/cart"
	"bookstore-be/internal/catalog"
	"bookstore-be/internal/checkout"
	"bookstore-be/internal/config"
	"bookstore-be/internal/db"
	"bookstore-be/internal/events"
	"bookstore-be/internal/httpapi"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/order"
	"bookstore-be/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := tracing.Init(cfg.JaegerEndpoint)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}

	database := db.InitDB(cfg)
	defer database.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.InitRedis(cfg)
		if err != nil {
			// the catalog works without its cache
			log.Warn("redis unavailable, book cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}

	publisher, err := events.NewPublisher(cfg)
	if err != nil {
		log.Fatal("failed to init event publisher", zap.Error(err))
	}
	defer publisher.Close()

	app := newApp(cfg, database, rdb, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.recoverHolds(ctx, cfg.HoldStaleAfter)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           httpapi.NewRouter(app.handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()
	log.Info("server started", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("failed to flush traces", zap.Error(err))
	}
	log.Info("server exited")
}

type app struct {
	handler  *httpapi.Handler
	checkout checkout.Service
}

// newApp wires repositories and services. rdb may be nil.
func newApp(cfg *config.Config, database *sql.DB, rdb *redis.Client, publisher events.Publisher) *app {
	catalogRepo := catalog.NewRepository(database)
	var bookCache catalog.Cache
	if rdb != nil {
		bookCache = cache.NewBookCache(rdb, cfg.CacheTTL)
	}
	bookSvc := catalog.NewService(catalogRepo, bookCache, cfg.Defaults.Category)

	cartRepo := cart.NewRepository(database)
	cartSvc := cart.NewService(cartRepo, bookSvc, cfg.Defaults.Quantity)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, publisher, cfg.OrderListLimit)

	checkoutSvc := checkout.NewService(cartRepo, bookSvc, catalogRepo, orderRepo, publisher, checkout.Options{
		Pricing:              checkout.NewPricing(cfg.Pricing),
		DefaultPaymentMethod: cfg.Defaults.PaymentMethod,
		RetryAttempts:        cfg.CheckoutRetryAttempts,
		HoldStaleAfter:       cfg.HoldStaleAfter,
	})

	return &app{
		handler: &httpapi.Handler{
			Books:      bookSvc,
			Carts:      cartSvc,
			Orders:     orderSvc,
			Checkout:   checkoutSvc,
			JWTSecret:  []byte(cfg.JWTSecret),
			CORSOrigin: cfg.CORSOrigin,
		},
		checkout: checkoutSvc,
	}
}

// recoverHolds resolves abandoned stock holds at startup and then every
// interval until ctx is done.
func (a *app) recoverHolds(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	log := logger.L().With(zap.String("job", "hold-recovery"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.checkout.Recover(ctx); err != nil && ctx.Err() == nil {
			log.Error("hold recovery failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
