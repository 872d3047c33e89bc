// services/referral_service.go
package services

import (
	"context"

	"promo-reward-system/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralService attributes invite and deposit rewards to a referrer at
// most once per (referrer, referral, event type). The unique index on
// referral_events is the safety net: concurrent double-invocation resolves
// through the ON CONFLICT DO NOTHING insert, not through application locks.
type ReferralService struct {
	DB      *gorm.DB
	Rewards RewardAmounts
	Log     *logrus.Logger
}

func NewReferralService(db *gorm.DB, rewards RewardAmounts, log *logrus.Logger) *ReferralService {
	return &ReferralService{DB: db, Rewards: rewards, Log: log}
}

// RecordInvite links a freshly created user to its referrer and pays the
// invite reward. Called once per user, at creation time, inside the same
// transaction that created the row. A candidate equal to the new user is
// rejected; a candidate that resolves to no account means "no referrer",
// not an error.
func (s *ReferralService) RecordInvite(tx *gorm.DB, user *models.User, referrerTelegramID int64) error {
	if referrerTelegramID == 0 || referrerTelegramID == user.TelegramID {
		return nil
	}

	var referrer models.User
	if err := tx.Where("telegram_id = ?", referrerTelegramID).First(&referrer).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	user.ReferrerID = &referrer.ID
	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
		Update("referrer_id", referrer.ID).Error; err != nil {
		return err
	}

	paid, err := s.payReferralReward(tx, referrer.ID, user.ID, models.ReferralEventInvite, s.Rewards.InvitePro, models.TxTypeInviteReward)
	if err != nil {
		return err
	}
	if paid {
		s.Log.WithFields(logrus.Fields{
			"referrer_id": referrer.ID,
			"referral_id": user.ID,
		}).Info("invite reward paid")
	}
	return nil
}

// RecordDeposit pays the referrer's one-time deposit reward for this user.
// Called from the offer settlement transaction whenever the user has a
// referrer; replayed postbacks hit the guard and no-op.
func (s *ReferralService) RecordDeposit(tx *gorm.DB, user *models.User) error {
	if user.ReferrerID == nil {
		return nil
	}

	paid, err := s.payReferralReward(tx, *user.ReferrerID, user.ID, models.ReferralEventDeposit, s.Rewards.DepositPro, models.TxTypeDepositReward)
	if err != nil {
		return err
	}
	if paid {
		s.Log.WithFields(logrus.Fields{
			"referrer_id": *user.ReferrerID,
			"referral_id": user.ID,
		}).Info("deposit reward paid")
	}
	return nil
}

// payReferralReward inserts the guard record and, only when the insert
// actually landed, credits the referrer and appends the ledger entry.
// All three writes share the caller's transaction.
func (s *ReferralService) payReferralReward(tx *gorm.DB, referrerID, referralID string, eventType models.ReferralEventType, amount int64, txType models.TransactionType) (bool, error) {
	event := models.ReferralEvent{
		ID:         uuid.NewString(),
		ReferrerID: referrerID,
		ReferralID: referralID,
		EventType:  eventType,
		RewardPro:  amount,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Already paid for this pair and event type.
		return false, nil
	}

	credit := tx.Model(&models.User{}).
		Where("id = ?", referrerID).
		Update("balance_pro", gorm.Expr("balance_pro + ?", amount))
	if credit.Error != nil {
		return false, credit.Error
	}
	if credit.RowsAffected == 0 {
		return false, ErrUserNotFound
	}

	entry := models.Transaction{
		ID:        uuid.NewString(),
		UserID:    referrerID,
		Type:      txType,
		AmountPro: amount,
		Status:    models.TxStatusOK,
		Meta:      metaJSON(map[string]any{"referral_id": referralID}),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Stats returns the referral counters shown to a user: how many users they
// referred and how many of those have deposited.
func (s *ReferralService) Stats(ctx context.Context, userID string) (total int64, withDeposit int64, err error) {
	db := s.DB.WithContext(ctx)
	if err = db.Model(&models.User{}).Where("referrer_id = ?", userID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = db.Model(&models.User{}).Where("referrer_id = ? AND is_deposit = ?", userID, true).Count(&withDeposit).Error; err != nil {
		return 0, 0, err
	}
	return total, withDeposit, nil
}
