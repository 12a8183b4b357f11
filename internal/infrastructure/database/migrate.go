package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.AutoMigrate(
		&model.Payment{},
		&model.WebhookEvent{},
		&model.AuditLog{},
	); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	if db.Dialector.Name() == "postgres" {
		if err := createConstraints(db); err != nil {
			logger.Error("Failed to create constraints", zap.Error(err))
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates partial indexes GORM tags cannot express.
func createCustomIndexes(db *gorm.DB) error {
	// The pending sweep scans stale PENDING rows oldest first.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_pending_updated ON payments (updated_at) WHERE status = 'PENDING'`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON webhook_events (created_at) WHERE status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	return nil
}

func createConstraints(db *gorm.DB) error {
	constraints := map[string]string{
		"chk_payments_amount_positive":   `CHECK (amount > 0)`,
		"chk_payments_refund_not_excess": `CHECK (refunded_amount >= 0 AND refunded_amount <= amount)`,
	}
	for name, check := range constraints {
		var exists bool
		if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`, name).Scan(&exists).Error; err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := db.Exec(`ALTER TABLE payments ADD CONSTRAINT ` + name + ` ` + check).Error; err != nil {
			return err
		}
	}
	return nil
}
