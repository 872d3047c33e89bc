// services/user_service.go
package services

import (
	"context"
	"errors"
	"time"

	"promo-reward-system/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserService struct {
	DB        *gorm.DB
	Referrals *ReferralService
	Log       *logrus.Logger
}

func NewUserService(db *gorm.DB, referrals *ReferralService, log *logrus.Logger) *UserService {
	return &UserService{DB: db, Referrals: referrals, Log: log}
}

// EnsureUser upserts the user for a Telegram identity. A new user is
// created together with its referral linkage (and the referrer's invite
// reward) in one transaction; an existing user only gets its username and
// last_login_at refreshed. referrerTelegramID of 0 means no referrer.
func (s *UserService) EnsureUser(ctx context.Context, telegramID int64, username *string, referrerTelegramID int64) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err == nil {
		updates := map[string]any{"last_login_at": time.Now().UTC()}
		if username != nil {
			updates["username"] = *username
		}
		if err := s.DB.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		ID:          uuid.NewString(),
		TelegramID:  telegramID,
		Username:    username,
		LastLoginAt: time.Now().UTC(),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return s.Referrals.RecordInvite(tx, &user, referrerTelegramID)
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"telegram_id": telegramID,
		"referred":    user.ReferrerID != nil,
	}).Info("user created")
	return &user, nil
}

// GetByID loads a user by internal id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByTelegramID loads a user by Telegram id.
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetBanned flips the ban flag. Banned users drop out of broadcast
// audiences on the next delivery pass and are rejected at the API edge.
func (s *UserService) SetBanned(ctx context.Context, userID string, banned bool) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("banned", banned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns all users for the admin surface.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
