// Command reconcile settles payments the webhook path missed: it asks the
// gateway about stale PENDING payments and replays failed webhook events.
// It is meant to run from cron.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/crowdfund-payment/internal/app"
	"github.com/wekeepgrowing/crowdfund-payment/internal/config"
	"github.com/wekeepgrowing/crowdfund-payment/internal/infrastructure/database"
	"github.com/wekeepgrowing/crowdfund-payment/pkg/logger"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs first.
func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	zapLogger = zapLogger.With(zap.String("job", "reconcile"))
	defer zapLogger.Sync()

	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	application, err := app.New(cfg, db, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := false

	sweep, err := application.Sweeper.Sweep(ctx)
	if err != nil {
		zapLogger.Error("Pending sweep failed", zap.Error(err))
		failed = true
	}
	if sweep != nil {
		zapLogger.Info("Pending sweep finished",
			zap.Int("scanned", sweep.Scanned),
			zap.Int("completed", sweep.Completed),
			zap.Int("canceled", sweep.Canceled),
			zap.Int("open", sweep.Open),
			zap.Int("errors", sweep.Errors))
		failed = failed || sweep.Errors > 0
	}

	replay, err := application.Ingress.Replay(ctx, cfg.Reconcile.ReplayLimit)
	if err != nil {
		zapLogger.Error("Webhook replay failed", zap.Error(err))
		failed = true
	}
	if replay != nil {
		zapLogger.Info("Webhook replay finished",
			zap.Int("processed", replay.Processed),
			zap.Int("failed", replay.Failed))
	}

	if failed {
		return 1
	}
	return 0
}
