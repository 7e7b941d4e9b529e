package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kitarena/kitarena/internal/app"
	"github.com/kitarena/kitarena/internal/auth"
	"github.com/kitarena/kitarena/internal/catalog"
	"github.com/kitarena/kitarena/internal/ledger"
	"github.com/kitarena/kitarena/internal/observability"
	"github.com/kitarena/kitarena/internal/orders"
	"github.com/kitarena/kitarena/internal/platform/cache"
	"github.com/kitarena/kitarena/internal/platform/db"
	"github.com/kitarena/kitarena/internal/pricing"
	"github.com/kitarena/kitarena/internal/shared"
	"github.com/kitarena/kitarena/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessions := shared.NewSessionManager(redisClient, "kitarena:session", cfg.SessionTTL)

	authService := auth.NewService(auth.NewRepository(pool), sessions)
	gate := auth.Gate{Service: authService, Logger: logger}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	catalogService := catalog.NewService(catalog.NewRepository(pool), jobClient, logger)

	engine := pricing.NewEngine(pricing.Surcharges{
		CustomName:   cfg.PriceCustomName,
		CustomNumber: cfg.PriceCustomNumber,
		Patch:        cfg.PricePatch,
	})
	ordersService := orders.NewService(
		orders.NewRepository(pool),
		catalogService,
		engine,
		orders.Config{RecordFullPayment: cfg.OrdersRecordFullPayment},
		logger,
	)

	ledgerService := ledger.NewService(ledger.NewRepository(pool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Gate:           gate,
		AuthHandler:    auth.NewHandler(logger, authService),
		CatalogHandler: catalog.NewHandler(logger, catalogService),
		OrdersHandler:  orders.NewHandler(logger, ordersService),
		LedgerHandler:  ledger.NewHandler(logger, ledgerService),
		JobsHandler:    jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
