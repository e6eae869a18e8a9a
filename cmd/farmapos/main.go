package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/farmapos/farmapos/internal/app"
	"github.com/farmapos/farmapos/internal/auth"
	"github.com/farmapos/farmapos/internal/catalog"
	"github.com/farmapos/farmapos/internal/customers"
	"github.com/farmapos/farmapos/internal/inventory"
	"github.com/farmapos/farmapos/internal/platform/cache"
	"github.com/farmapos/farmapos/internal/platform/db"
	"github.com/farmapos/farmapos/internal/promotions"
	"github.com/farmapos/farmapos/internal/reports"
	"github.com/farmapos/farmapos/internal/sales"
	"github.com/farmapos/farmapos/internal/shared"
	"github.com/farmapos/farmapos/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Sessions live in Redis, nothing works without it.
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, sessionManager)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	promotionCache := promotions.NewCache(redisClient, cfg.PromotionCacheTTL)
	promotionRepo := promotions.NewRepository(dbpool)
	promotionService := promotions.NewService(promotionRepo, promotionCache)
	promotionHandler := promotions.NewHandler(logger, promotionService, func(r *http.Request, productID int64) (promotions.SaleProduct, error) {
		product, err := catalogService.GetSellable(r.Context(), productID)
		if err != nil {
			return promotions.SaleProduct{}, err
		}
		return promotions.SaleProduct{ID: product.ID, Laboratory: product.Laboratory, SalePrice: product.SalePrice}, nil
	})

	customerRepo := customers.NewRepository(dbpool)
	customerService := customers.NewService(customerRepo)
	customerHandler := customers.NewHandler(logger, customerService)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, catalogService, inventoryService, promotionService, auditLogger, idempotencyStore, sales.Config{
		PrescriptionMaxAgeDays: cfg.PrescriptionMaxAgeDays,
		FEFOWindowDays:         cfg.FEFOWindowDays,
		FEFOMaxLots:            cfg.FEFOMaxLots,
	}, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	reportRepo := reports.NewRepository(dbpool)
	reportService := reports.NewService(reportRepo, inventoryService)
	reportHandler := reports.NewHandler(logger, reportService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		CatalogHandler:   catalogHandler,
		InventoryHandler: inventoryHandler,
		PromotionHandler: promotionHandler,
		SalesHandler:     salesHandler,
		CustomerHandler:  customerHandler,
		ReportHandler:    reportHandler,
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
