package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/growthops/sheetpulse/pkg/api"
	"github.com/growthops/sheetpulse/pkg/auth"
	"github.com/growthops/sheetpulse/pkg/config"
	"github.com/growthops/sheetpulse/pkg/observability"
	"github.com/growthops/sheetpulse/pkg/push"
	"github.com/growthops/sheetpulse/pkg/sheets"
	"github.com/growthops/sheetpulse/pkg/slack"
	"github.com/growthops/sheetpulse/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := storage.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	store := storage.NewStore(db)

	issuer := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	authService := auth.NewService(auth.NewStore(db), issuer, cfg.Auth.Secret, logger)
	if err := authService.Bootstrap(ctx); err != nil {
		logger.WithError(err).Fatal("failed to bootstrap admin account")
	}

	sheetClient, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.RequestTimeout)
	if err != nil {
		logger.WithError(err).Fatal("failed to create sheets client")
	}
	notifier := slack.NewClient(cfg.Push.SlackTimeout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				metrics.UpdateDBStats(db)
			}
		}()
	}

	runner := push.NewRunner(store, sheetClient, notifier, logger, metrics, cfg.Push.Concurrency)

	server := api.NewServer(api.Dependencies{
		Auth:    authService,
		Store:   store,
		Sheets:  sheetClient,
		Push:    runner,
		Health:  observability.NewHealthChecker(db),
		Metrics: metrics,
		Logger:  logger,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	logger.Info("server stopped")
}
