package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, Migrate(db, zap.NewNop()))

	assert.True(t, db.Migrator().HasTable("payments"))
	assert.True(t, db.Migrator().HasTable("webhook_events"))
	assert.True(t, db.Migrator().HasTable("payment_audit_log"))
	assert.True(t, db.Migrator().HasIndex("payments", "idx_payments_pending_updated"))

	repos := NewRepositories(db, zap.NewNop())
	assert.NotNil(t, repos.Payment)
	assert.NotNil(t, repos.Webhook)
	assert.NotNil(t, repos.AuditLog)
}
