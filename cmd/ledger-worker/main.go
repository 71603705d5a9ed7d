package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ropastore/internal/amqp"
	"ropastore/internal/config"
	"ropastore/internal/log"
	"ropastore/internal/sheets"
	"ropastore/internal/sheets/google"
	"ropastore/internal/sheets/memory"
	"ropastore/internal/storage"
	"ropastore/internal/worker"
)

func main() {
	// Load .env for local development; missing file is fine in production.
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     log.DefaultConfig().Level,
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	logger.Info("Starting ledger-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL must be set for the ledger worker")
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mirror entries to Google Sheets when configured, otherwise keep them
	// in an in-memory book so the queue still drains during development.
	var appender sheets.LedgerAppender
	if cfg.GoogleSpreadsheetID != "" {
		appender, err = google.New(ctx, cfg.GoogleSpreadsheetID, cfg.SalesSheetName, cfg.ExpensesSheetName, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets bookkeeping enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		appender = memory.New()
		logger.Warn("No GOOGLE_SPREADSHEET_ID configured, entries are kept in memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewLedgerWorker(store, appender, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeLedgerEntries(ctx, func(msg *amqp.LedgerEntryMessage) error {
			return w.HandleMessage(ctx, msg)
		})
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
