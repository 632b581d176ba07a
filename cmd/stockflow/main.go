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

	"github.com/odyssey-erp/stockflow/internal/app"
	"github.com/odyssey-erp/stockflow/internal/documents"
	"github.com/odyssey-erp/stockflow/internal/items"
	"github.com/odyssey-erp/stockflow/internal/locations"
	"github.com/odyssey-erp/stockflow/internal/observability"
	"github.com/odyssey-erp/stockflow/internal/platform/cache"
	"github.com/odyssey-erp/stockflow/internal/platform/db"
	"github.com/odyssey-erp/stockflow/internal/sequence"
	"github.com/odyssey-erp/stockflow/internal/shared"
	"github.com/odyssey-erp/stockflow/internal/transfer"
	"github.com/odyssey-erp/stockflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	var linkCache *cache.Versioned
	if err != nil {
		logger.Warn("redis unavailable, link cache disabled", slog.Any("error", err))
	} else {
		linkCache = cache.NewVersioned(redisClient, "links", cfg.LinkCacheTTL)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts, time.Minute)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		_ = inspector.Close()
	}()

	locationService := locations.NewService(locations.NewRepository(pool), linkCache, logger)
	itemService := items.NewService(items.NewRepository(pool), logger)

	transferService := transfer.NewService(
		transfer.NewRepository(pool, cfg.TxMaxRetries),
		locationService,
		transfer.Dependencies{
			Audit:       auditLogger,
			Idempotency: idempotencyStore,
			Jobs:        jobClient,
			Metrics:     metrics,
		},
		logger,
	)

	generator := sequence.NewGenerator(
		sequence.NewPGCounter(pool),
		sequence.Config{Fallback: cfg.SequenceFallback},
		metrics,
		logger,
	)
	documentService := documents.NewService(
		documents.NewRepository(pool, generator, cfg.TxMaxRetries),
		auditLogger,
		idempotencyStore,
		logger,
	)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LocationsHandler: locations.NewHandler(logger, locationService),
		ItemsHandler:     items.NewHandler(logger, itemService),
		TransferHandler:  transfer.NewHandler(logger, transferService),
		SequenceHandler:  sequence.NewHandler(logger, generator),
		DocumentsHandler: documents.NewHandler(logger, documentService),
		JobsHandler:      jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
