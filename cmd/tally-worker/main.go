// tally-worker tails the mutation event queue and writes an audit log.
// It is the attachment point for downstream sync jobs: anything that needs
// to react to ledger changes consumes the same queue.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/config"
	applog "tally/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentAMQP,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	err = amqpClient.ConsumeMutations(ctx, func(msg *amqp.MutationMessage) error {
		logger.Info("ledger mutation",
			applog.FieldEventKind, msg.Kind,
			"entity_id", msg.EntityID,
			"occurred_at", msg.Timestamp)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("worker stopped gracefully")
}
