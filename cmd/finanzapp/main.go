package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finanzapp-core/internal/api"
	"finanzapp-core/internal/backend"
	"finanzapp-core/internal/config"
	"finanzapp-core/internal/consistency"
	"finanzapp-core/internal/database"
	"finanzapp-core/internal/ledger"
	"finanzapp-core/internal/logger"
	"finanzapp-core/internal/session"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	validator := consistency.NewValidator(log, consistency.Options{
		Epsilon:               cfg.Validation.Epsilon,
		TolerateMissingTarget: cfg.Validation.TolerateMissingTarget,
	})
	ledgerSvc := ledger.NewService(ledger.NewGormRepository(db), validator, log)

	restClient := backend.NewRestClient(&cfg.Backend, log)
	sess := session.New(restClient, log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	warmer := session.NewWarmer(sess, cfg.Catalog.RefreshInterval, log)
	go warmer.Run(ctx)

	server := api.NewServer(cfg.Server, ledgerSvc, sess, validator, log)
	server.Start()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	log.Info("FinanzApp core has been shut down.")
}
