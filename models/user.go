package models

import (
	"time"
)

// User is the reward-bearing identity of one Telegram end user.
// BalancePro is maintained as the sum of all Transaction amounts for the
// user; no code path mutates it without writing the matching log entry in
// the same DB transaction.
type User struct {
	ID         string  `gorm:"primaryKey;type:uuid" json:"id"`
	TelegramID int64   `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username   *string `gorm:"type:varchar(255)" json:"username,omitempty"`

	// ReferrerID points at the referring User row. It is fixed at creation
	// time and never changed afterwards; self-reference is rejected.
	ReferrerID *string `gorm:"type:uuid;index" json:"referrer_id,omitempty"`

	BalancePro int64 `gorm:"not null;default:0" json:"balance_pro"`
	IsDeposit  bool  `gorm:"not null;default:false" json:"is_deposit"`
	Banned     bool  `gorm:"not null;default:false" json:"banned"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt time.Time  `json:"last_login_at"`
	DepositedAt *time.Time `json:"deposited_at,omitempty"`
}
