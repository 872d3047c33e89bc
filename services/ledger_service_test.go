package services

import (
	"context"
	"encoding/json"
	"testing"

	"promo-reward-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditBonus(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	ledger := NewLedgerService(db, DefaultRewardAmounts, NewReferralService(db, DefaultRewardAmounts, log), log)
	user := seedUser(t, db, 100, 0)

	entry, err := ledger.CreditBonus(context.Background(), user.ID, 50000, models.TxTypeGameBonus)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), entry.AmountPro)
	assert.Equal(t, models.TxStatusOK, entry.Status)

	// A second credit accumulates; the ledger is append-only.
	_, err = ledger.CreditBonus(context.Background(), user.ID, 50000, models.TxTypeGameBonus)
	require.NoError(t, err)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, int64(100000), got.BalancePro)
	assert.Equal(t, got.BalancePro, ledgerSum(t, db, user.ID))
}

func TestCreditBonusRejectsNegative(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	ledger := NewLedgerService(db, DefaultRewardAmounts, NewReferralService(db, DefaultRewardAmounts, log), log)
	user := seedUser(t, db, 100, 0)

	_, err := ledger.CreditBonus(context.Background(), user.ID, -5, models.TxTypeGameBonus)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, int64(0), got.BalancePro)
}

func TestCreditBonusUnknownUser(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	ledger := NewLedgerService(db, DefaultRewardAmounts, NewReferralService(db, DefaultRewardAmounts, log), log)

	_, err := ledger.CreditBonus(context.Background(), uuid.NewString(), 100, models.TxTypeGameBonus)
	assert.ErrorIs(t, err, ErrUserNotFound)

	var entries int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestRequestWithdrawal(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	ledger := NewLedgerService(db, DefaultRewardAmounts, NewReferralService(db, DefaultRewardAmounts, log), log)
	user := seedUser(t, db, 100, 0)

	_, err := ledger.CreditBonus(context.Background(), user.ID, 60000, models.TxTypeGameBonus)
	require.NoError(t, err)

	entry, err := ledger.RequestWithdrawal(context.Background(), user.ID, 20000, "TON wallet abc")
	require.NoError(t, err)
	assert.Equal(t, int64(-20000), entry.AmountPro)
	assert.Equal(t, models.TxStatusPending, entry.Status)
	require.NotNil(t, entry.Meta)

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(*entry.Meta), &meta))
	assert.Equal(t, "TON wallet abc", meta["details"])

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, int64(40000), got.BalancePro)
	assert.Equal(t, got.BalancePro, ledgerSum(t, db, user.ID))
}

func TestRequestWithdrawalInsufficient(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	ledger := NewLedgerService(db, DefaultRewardAmounts, NewReferralService(db, DefaultRewardAmounts, log), log)
	user := seedUser(t, db, 100, 0)

	_, err := ledger.CreditBonus(context.Background(), user.ID, 100, models.TxTypeGameBonus)
	require.NoError(t, err)

	_, err = ledger.RequestWithdrawal(context.Background(), user.ID, 101, "wallet")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Balance and ledger untouched by the rejected request.
	got := reloadUser(t, db, user.ID)
	assert.Equal(t, int64(100), got.BalancePro)
	assert.Equal(t, got.BalancePro, ledgerSum(t, db, user.ID))

	_, err = ledger.RequestWithdrawal(context.Background(), user.ID, 0, "wallet")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ledger.RequestWithdrawal(context.Background(), uuid.NewString(), 10, "wallet")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminAdjust(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	ledger := NewLedgerService(db, DefaultRewardAmounts, NewReferralService(db, DefaultRewardAmounts, log), log)
	user := seedUser(t, db, 100, 0)

	_, err := ledger.AdminAdjust(context.Background(), user.ID, 500, "promo compensation")
	require.NoError(t, err)

	// Negative deltas are allowed and may drive the balance below zero.
	_, err = ledger.AdminAdjust(context.Background(), user.ID, -700, "abuse rollback")
	require.NoError(t, err)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, int64(-200), got.BalancePro)
	assert.Equal(t, got.BalancePro, ledgerSum(t, db, user.ID))
}

func TestSettleOfferDeposit(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	referrals := NewReferralService(db, DefaultRewardAmounts, log)
	ledger := NewLedgerService(db, DefaultRewardAmounts, referrals, log)

	user := seedUser(t, db, 100, 0)
	offer := &models.Offer{
		ID:        uuid.NewString(),
		Title:     "Install the partner app",
		RewardPro: 5000,
		Link:      "https://offers.example/app",
		IsActive:  true,
	}
	require.NoError(t, db.Create(offer).Error)

	require.NoError(t, ledger.SettleOfferDeposit(context.Background(), user.TelegramID, offer.ID))

	got := reloadUser(t, db, user.ID)
	assert.True(t, got.IsDeposit)
	require.NotNil(t, got.DepositedAt)
	firstDeposit := *got.DepositedAt
	assert.Equal(t, int64(5000), got.BalancePro)

	// A replayed postback credits the offer reward again (provider-side
	// de-duplication) but must not move deposited_at.
	require.NoError(t, ledger.SettleOfferDeposit(context.Background(), user.TelegramID, offer.ID))
	got = reloadUser(t, db, user.ID)
	assert.Equal(t, int64(10000), got.BalancePro)
	require.NotNil(t, got.DepositedAt)
	assert.Equal(t, firstDeposit, *got.DepositedAt)
	assert.Equal(t, got.BalancePro, ledgerSum(t, db, user.ID))
}

func TestSettleOfferDepositPaysReferrerOnce(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	referrals := NewReferralService(db, DefaultRewardAmounts, log)
	ledger := NewLedgerService(db, DefaultRewardAmounts, referrals, log)

	referrer := seedUser(t, db, 100, 0)
	referred := seedUser(t, db, 200, 0)
	require.NoError(t, db.Model(referred).Update("referrer_id", referrer.ID).Error)

	offer := &models.Offer{
		ID:        uuid.NewString(),
		Title:     "Deposit offer",
		RewardPro: 5000,
		Link:      "https://offers.example/deposit",
		IsActive:  true,
	}
	require.NoError(t, db.Create(offer).Error)

	require.NoError(t, ledger.SettleOfferDeposit(context.Background(), referred.TelegramID, offer.ID))
	require.NoError(t, ledger.SettleOfferDeposit(context.Background(), referred.TelegramID, offer.ID))

	// The referrer's deposit reward is one-shot even though the offer
	// reward was credited twice.
	gotReferrer := reloadUser(t, db, referrer.ID)
	assert.Equal(t, DefaultRewardAmounts.DepositPro, gotReferrer.BalancePro)
	assert.Equal(t, gotReferrer.BalancePro, ledgerSum(t, db, referrer.ID))

	var events int64
	require.NoError(t, db.Model(&models.ReferralEvent{}).
		Where("referrer_id = ? AND referral_id = ?", referrer.ID, referred.ID).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestSettleOfferDepositUnknowns(t *testing.T) {
	db := testDB(t)
	log := testLogger()
	referrals := NewReferralService(db, DefaultRewardAmounts, log)
	ledger := NewLedgerService(db, DefaultRewardAmounts, referrals, log)

	user := seedUser(t, db, 100, 0)

	err := ledger.SettleOfferDeposit(context.Background(), 999, uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = ledger.SettleOfferDeposit(context.Background(), user.TelegramID, uuid.NewString())
	assert.ErrorIs(t, err, ErrOfferNotFound)

	got := reloadUser(t, db, user.ID)
	assert.False(t, got.IsDeposit)
	assert.Equal(t, int64(0), got.BalancePro)
}
