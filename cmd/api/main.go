package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/api"
	"github.com/vignesh-goutham/coinledger/pkg/blob"
	"github.com/vignesh-goutham/coinledger/pkg/coingecko"
	"github.com/vignesh-goutham/coinledger/pkg/config"
	"github.com/vignesh-goutham/coinledger/pkg/dynamo"
	"github.com/vignesh-goutham/coinledger/pkg/logger"
	"github.com/vignesh-goutham/coinledger/pkg/prices"
	"github.com/vignesh-goutham/coinledger/pkg/users"
)

// Local development server exposing the same handlers the Lambdas run.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireUsers(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	client, err := dynamo.NewClient(ctx, cfg.Region)
	if err != nil {
		zl.Fatal("failed to create dynamodb client", zap.Error(err))
	}

	repo := users.NewRepository(dynamo.NewTable(client, cfg.UsersTable, "id"), cfg.EmailIndex, cfg.UniqueEmailGuard, zl)
	router := api.NewRouter(users.NewHandler(users.NewService(repo, zl), zl), zl)

	priceRepo := prices.NewRepository(client, cfg.PricesTable, zl)
	source := coingecko.NewClient(cfg.CoinGeckoURL, cfg.CoinLimit, cfg.MarketTimeout, zl)
	api.MountJob(router, "/prices/refresh", prices.NewRefresher(source, priceRepo, cfg.RefreshMode, zl).Handle)

	if cfg.ExportBucket != "" {
		store, err := blob.NewStore(ctx, cfg.Region, cfg.ExportBucket)
		if err != nil {
			zl.Fatal("failed to create s3 client", zap.Error(err))
		}
		api.MountJob(router, "/prices/export", prices.NewExporter(priceRepo, store, cfg.ExportSortField, zl).Handle)
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	zl.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown error", zap.Error(err))
	}
}
