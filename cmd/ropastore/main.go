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

	"ropastore/internal/amqp"
	"ropastore/internal/auth"
	"ropastore/internal/cartstore"
	"ropastore/internal/config"
	apphttp "ropastore/internal/http"
	"ropastore/internal/log"
	"ropastore/internal/report"
	"ropastore/internal/services"
	"ropastore/internal/storage"
	"ropastore/internal/uploads"
)

func main() {
	// Load .env for local development; missing file is fine in production.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting ropastore")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	// The AMQP broker is optional; without it sales and expenses are simply
	// not mirrored to the bookkeeping worker.
	var publisher services.EntryPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
		}
	} else {
		logger.Info("No AMQP_URL configured, ledger events disabled")
	}

	ledger := services.NewLedgerService(store, publisher, logger)
	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)

	carts := cartstore.New(10000, cfg.SessionTTL)
	carts.StartCleanup(10 * time.Minute)
	defer carts.Stop()

	uploadMgr, err := uploads.NewManager(cfg.UploadDir, cfg.MaxImageWidth, logger)
	if err != nil {
		logger.Error("Failed to prepare upload directory", log.FieldError, err, "dir", cfg.UploadDir)
		os.Exit(1)
	}

	reports := report.NewEngine(store)
	pdf := report.NewPDFRenderer(cfg.BaseURL, cfg.ChromePath, logger)

	srv, err := apphttp.NewServer(cfg, store, ledger, sessions, carts, uploadMgr, reports, pdf, logger)
	if err != nil {
		logger.Error("Failed to build server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}

	logger.Info("Server stopped gracefully")
}
