package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/config"
	apphttp "tally/internal/http"
	"tally/internal/ledger"
	applog "tally/internal/log"
	"tally/internal/scan"
	"tally/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Choose the persistence backend (default: memory)
	var store ledger.Store
	switch cfg.DataBackend {
	case "sqlite":
		sqliteStore, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("failed to initialize SQLite store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqliteStore.Close()
		store = sqliteStore
		logger.Info("initialized sqlite backend", "path", cfg.SQLiteDBPath)
	default:
		store = storage.NewMemoryStore()
		logger.Info("initialized memory backend")
	}

	opts := []ledger.Option{}

	// Mutation events are optional, the ledger runs fine without a broker
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, mutation events disabled", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, ledger.WithPublisher(amqpClient))
			logger.Info("connected to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	led, err := ledger.Open(ctx, store, opts...)
	if err != nil {
		logger.Error("failed to open ledger", applog.FieldError, err)
		os.Exit(1)
	}

	var scanner apphttp.Scanner
	if cfg.ScanEnabled() {
		geminiScanner, err := scan.NewGeminiScanner(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("scanner unavailable, receipt scanning disabled", applog.FieldError, err)
		} else {
			defer geminiScanner.Close()
			scanner = geminiScanner
			logger.Info("receipt scanning enabled")
		}
	} else {
		logger.Info("receipt scanning disabled, no API key configured")
	}

	srv := apphttp.NewServer(":"+cfg.Port, led, scanner, cfg.ScanTimeout, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second // scans can take a while
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
