// Package app wires the payment service's components from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/crowdfund-payment/internal/config"
	"github.com/wekeepgrowing/crowdfund-payment/internal/infrastructure/database"
	"github.com/wekeepgrowing/crowdfund-payment/internal/infrastructure/notify"
	"github.com/wekeepgrowing/crowdfund-payment/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
)

// App holds the wired usecases shared by the server and the reconcile job.
type App struct {
	Repos      *database.Repositories
	Gateway    *stripe.Client
	Reconciler *usecase.Reconciler
	Ingress    *usecase.WebhookIngress
	Payments   *usecase.PaymentUsecase
	Sweeper    *usecase.PendingSweeper

	db          *gorm.DB
	closeNotify func() error
	logger      *zap.Logger
}

// New builds the application on top of an open database.
func New(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*App, error) {
	gatewayConfig := cfg.Service.GatewayConfig()
	gateway, err := stripe.NewClient(gatewayConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe client: %w", err)
	}
	verifier := stripe.NewWebhookVerifier(gatewayConfig, logger)

	brokers, closeNotify, err := notify.NewObservers(cfg.Notify, logger)
	if err != nil {
		return nil, err
	}

	repos := database.NewRepositories(db, logger)
	observers := append([]usecase.Observer{notify.NewAuditObserver(repos.AuditLog)}, brokers...)
	reconciler := usecase.NewReconciler(repos.Payment, gateway, logger, observers...)

	return &App{
		Repos:      repos,
		Gateway:    gateway,
		Reconciler: reconciler,
		Ingress:    usecase.NewWebhookIngress(verifier, repos.Webhook, reconciler, gateway.Platform(), logger),
		Payments:   usecase.NewPaymentUsecase(repos.Payment, gateway, cfg.Service.DefaultCurrency, logger),
		Sweeper: usecase.NewPendingSweeper(repos.Payment, gateway, reconciler,
			cfg.Reconcile.StaleAfter, cfg.Reconcile.BatchSize, logger),
		db:          db,
		closeNotify: closeNotify,
		logger:      logger,
	}, nil
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the notification broker connection.
func (a *App) Close() {
	if err := a.closeNotify(); err != nil {
		a.logger.Error("Failed to close notification publisher", zap.Error(err))
	}
}
