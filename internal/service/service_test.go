package service

import (
	"testing"

	"voltxt/config"
	"voltxt/internal/models"
	"voltxt/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAPIKey = "abcdefghijklmnopqrstuvwxyz123456" // 32 chars

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive for the test.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Order{},
		&models.OrderHistory{},
		&models.PaymentSession{},
		&models.WebhookLog{},
		&models.Setting{},
	))
	return db
}

func testVoltxtDefaults() *config.VoltxtConfig {
	return &config.VoltxtConfig{
		APIKey:            testAPIKey,
		Network:           "testnet",
		ExpiryHours:       24,
		CompletedStatusID: 2,
		PendingStatusID:   1,
		CancelledStatusID: 7,
		FailedStatusID:    10,
	}
}

func newTestSettings(t *testing.T, db *gorm.DB) *SettingsService {
	t.Helper()
	svc, err := NewSettingsService(repository.NewSettingRepository(db), testVoltxtDefaults())
	require.NoError(t, err)
	return svc
}

func seedOrder(t *testing.T, db *gorm.DB, id uint, statusID int, total float64, currency string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            id,
		OrderStatusID: statusID,
		Total:         total,
		CurrencyCode:  currency,
		Email:         "shopper@example.com",
		FirstName:     "Ada",
		LastName:      "Lovelace",
	}
	require.NoError(t, db.Create(order).Error)
	return order
}
