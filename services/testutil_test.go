package services

import (
	"io"
	"testing"

	"promo-reward-system/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.ReferralEvent{},
		&models.Offer{},
		&models.Channel{},
		&models.Broadcast{},
		&models.BroadcastDelivery{},
	))
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func seedUser(t *testing.T, db *gorm.DB, telegramID int64, balance int64) *models.User {
	t.Helper()

	user := &models.User{
		ID:         uuid.NewString(),
		TelegramID: telegramID,
		BalancePro: balance,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// ledgerSum recomputes a user's balance from their entries; every mutation
// path is expected to keep balance_pro equal to this sum.
func ledgerSum(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()

	var sum *int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Select("SUM(amount_pro)").
		Scan(&sum).Error)
	if sum == nil {
		return 0
	}
	return *sum
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", id).Error)
	return &user
}
