package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/growthops/sheetpulse/pkg/config"
	"github.com/growthops/sheetpulse/pkg/observability"
	"github.com/growthops/sheetpulse/pkg/push"
	"github.com/growthops/sheetpulse/pkg/sheets"
	"github.com/growthops/sheetpulse/pkg/slack"
	"github.com/growthops/sheetpulse/pkg/storage"
)

var (
	runOnce = flag.Bool("run-once", false, "Run one push cycle and exit (for testing or backfilling)")
	site    = flag.String("site", "", "Process a single site by name. Only used with --run-once")
)

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func main() {
	flag.Parse()

	logger := setupLogger(os.Getenv("SHEETPULSE_LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	store := storage.NewStore(db)

	sheetClient, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.RequestTimeout)
	if err != nil {
		logger.Fatalf("Failed to create sheets client: %v", err)
	}
	notifier := slack.NewClient(cfg.Push.SlackTimeout)

	runnerLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	runner := push.NewRunner(store, sheetClient, notifier, runnerLogger, nil, cfg.Push.Concurrency)

	// Run once mode (for testing or backfilling)
	if *runOnce {
		if *site != "" {
			if err := runner.ProcessSite(ctx, *site); err != nil {
				logger.Fatalf("Push failed for site %s: %v", *site, err)
			}
			logger.Infof("Push completed for site %s", *site)
			return
		}

		result, err := runner.ProcessAll(ctx)
		if err != nil {
			logger.Fatalf("Push run failed: %v", err)
		}
		logger.Infof("Push run completed: %d total, %d succeeded, %d skipped, %d failed",
			result.Total, result.Succeeded, result.Skipped, result.Failed)
		return
	}

	// Scheduled mode
	c := cron.New()
	_, err = c.AddFunc(cfg.Push.Schedule, func() {
		result, err := runner.ProcessAll(context.Background())
		if err != nil {
			logger.Errorf("Scheduled push run failed: %v", err)
			return
		}
		logger.Infof("Scheduled push run completed: %d total, %d succeeded, %d skipped, %d failed",
			result.Total, result.Succeeded, result.Skipped, result.Failed)
	})
	if err != nil {
		logger.Fatalf("Failed to schedule push job: %v", err)
	}

	c.Start()
	logger.Infof("Pusher started with schedule %q", cfg.Push.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("Pusher stopped")
}
