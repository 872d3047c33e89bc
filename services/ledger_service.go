// services/ledger_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"promo-reward-system/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrOfferNotFound     = errors.New("offer not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeAmount    = errors.New("amount must not be negative")
)

// LedgerService turns typed reward events into exactly one balance mutation
// plus one Transaction entry each, committed as a single DB transaction.
// Balance arithmetic happens in the database (balance_pro = balance_pro + ?),
// so concurrent events on the same user serialize on the row write and no
// increment is lost to a read-modify-write race.
type LedgerService struct {
	DB        *gorm.DB
	Rewards   RewardAmounts
	Referrals *ReferralService
	Log       *logrus.Logger
}

func NewLedgerService(db *gorm.DB, rewards RewardAmounts, referrals *ReferralService, log *logrus.Logger) *LedgerService {
	return &LedgerService{DB: db, Rewards: rewards, Referrals: referrals, Log: log}
}

// CreditBonus unconditionally credits amount to the user and appends an ok
// entry. Eligibility rules (e.g. game bonus only after deposit) belong to
// the caller, not here.
func (s *LedgerService) CreditBonus(ctx context.Context, userID string, amount int64, kind models.TransactionType) (*models.Transaction, error) {
	if amount < 0 {
		return nil, ErrNegativeAmount
	}

	entry := &models.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		AmountPro: amount,
		Status:    models.TxStatusOK,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("balance_pro", gorm.Expr("balance_pro + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    kind,
		"amount":  amount,
	}).Info("bonus credited")
	return entry, nil
}

// RequestWithdrawal debits amount immediately and appends a pending entry
// carrying the payout details. The debit is optimistic: the money is spent
// from the user's perspective at request time, "pending" only marks the
// external payout process. Returns ErrInsufficientFunds when amount exceeds
// the balance, leaving the balance untouched.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userID string, amount int64, details string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrNegativeAmount
	}

	entry := &models.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      models.TxTypeWithdrawRequest,
		AmountPro: -amount,
		Status:    models.TxStatusPending,
		Meta:      metaJSON(map[string]any{"details": details}),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional debit: only succeeds when the balance covers the amount.
		res := tx.Model(&models.User{}).
			Where("id = ? AND balance_pro >= ?", userID, amount).
			Update("balance_pro", gorm.Expr("balance_pro - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientFunds
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount,
	}).Info("withdrawal requested")
	return entry, nil
}

// AdminAdjust applies a signed delta on behalf of an administrator. No
// bound check: a trusted caller may drive a balance negative.
func (s *LedgerService) AdminAdjust(ctx context.Context, userID string, delta int64, reason string) (*models.Transaction, error) {
	entry := &models.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      models.TxTypeAdminAdjust,
		AmountPro: delta,
		Status:    models.TxStatusOK,
		Meta:      metaJSON(map[string]any{"reason": reason}),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("balance_pro", gorm.Expr("balance_pro + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"delta":   delta,
		"reason":  reason,
	}).Info("admin balance adjustment")
	return entry, nil
}

// SettleOfferDeposit handles a verified deposit postback for the given
// Telegram user and offer. The first deposit stamps deposited_at; is_deposit
// is set unconditionally. The offer reward is credited on every invocation:
// each postback counts as a separately rewarded conversion, de-duplicating
// replays of the same conversion is the postback provider's side of the
// contract. The referrer's deposit reward, by contrast, is paid at most once
// ever (see ReferralService.RecordDeposit), inside the same transaction.
func (s *LedgerService) SettleOfferDeposit(ctx context.Context, telegramID int64, offerID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		var offer models.Offer
		if err := tx.First(&offer, "id = ?", offerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOfferNotFound
			}
			return err
		}

		updates := map[string]any{
			"is_deposit":  true,
			"balance_pro": gorm.Expr("balance_pro + ?", offer.RewardPro),
		}
		if !user.IsDeposit {
			updates["deposited_at"] = time.Now().UTC()
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return err
		}

		entry := models.Transaction{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			Type:      models.TxTypeOfferReward,
			AmountPro: offer.RewardPro,
			Status:    models.TxStatusOK,
			Meta:      metaJSON(map[string]any{"offer_id": offer.ID}),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		if user.ReferrerID != nil {
			return s.Referrals.RecordDeposit(tx, &user)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Log.WithFields(logrus.Fields{
		"telegram_id": telegramID,
		"offer_id":    offerID,
	}).Info("offer deposit settled")
	return nil
}

func metaJSON(v map[string]any) *string {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	meta := string(b)
	return &meta
}
