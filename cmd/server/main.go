package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tap4impact/internal/payfast"
	"tap4impact/internal/server/api"
	"tap4impact/internal/server/config"
	"tap4impact/internal/server/database"
	"tap4impact/internal/server/service"
	"tap4impact/internal/server/stats"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"payfast_mode", cfg.PayFastMode,
		"stats_interval", cfg.StatsInterval,
		"admin_enabled", cfg.AdminToken != "",
	)
	if cfg.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN not set, write endpoints are disabled")
	}

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize repository and services
	repo := database.NewRepository(db)
	ledger := service.NewLedger(repo)
	projects := service.NewProjects(repo)
	users := service.NewUsers(repo)

	pfClient := payfast.NewClient(payfast.Config{
		MerchantID:  cfg.PayFastMerchantID,
		MerchantKey: cfg.PayFastMerchantKey,
		Passphrase:  cfg.PayFastPassphrase,
		Mode:        payfast.Mode(cfg.PayFastMode),
		ReturnURL:   cfg.PayFastReturnURL,
		CancelURL:   cfg.PayFastCancelURL,
	}, nil)
	payments := service.NewPayments(pfClient, ledger, cfg.PayFastConfirm)

	// Start the stats reconciler
	reconcilerCtx, reconcilerCancel := context.WithCancel(context.Background())
	reconciler := stats.NewReconciler(repo, cfg.StatsInterval)
	reconciler.Start(reconcilerCtx)

	// Setup HTTP router
	handler := api.NewHandler(ledger, projects, users, payments, db)
	e := api.SetupRouter(handler, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop the reconciler
	reconcilerCancel()
	reconciler.Wait()

	slog.Info("server exited cleanly")
}
