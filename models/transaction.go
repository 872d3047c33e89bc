package models

import "time"

// TransactionType tags the ledger entry with the event that produced it.
type TransactionType string

const (
	TxTypeLoginBonus      TransactionType = "login_bonus"
	TxTypeGameBonus       TransactionType = "game_bonus"
	TxTypeOfferReward     TransactionType = "offer_reward"
	TxTypeWithdrawRequest TransactionType = "withdraw_request"
	TxTypeAdminAdjust     TransactionType = "admin_adjust"
	TxTypeInviteReward    TransactionType = "invite_reward"
	TxTypeDepositReward   TransactionType = "deposit_reward"
)

type TransactionStatus string

const (
	TxStatusOK      TransactionStatus = "ok"
	TxStatusPending TransactionStatus = "pending"
	TxStatusFailed  TransactionStatus = "failed"
)

// Transaction is one append-only ledger entry. Rows are never updated or
// deleted; the balance of a user derives from the sum of their entries.
type Transaction struct {
	ID        string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string            `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      TransactionType   `gorm:"type:varchar(100);not null" json:"type"`
	AmountPro int64             `gorm:"not null;default:0" json:"amount_pro"`
	Status    TransactionStatus `gorm:"type:varchar(50);not null" json:"status"`
	Meta      *string           `gorm:"type:text" json:"meta,omitempty"`
	CreatedAt time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}
