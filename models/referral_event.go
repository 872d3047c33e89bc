package models

import "time"

type ReferralEventType string

const (
	ReferralEventInvite  ReferralEventType = "invite"
	ReferralEventDeposit ReferralEventType = "deposit"
)

// ReferralEvent records that a referrer has been paid for one referral's
// one event type. The composite unique index is the idempotency guard:
// a duplicate-key conflict on concurrent double-invocation means "already
// paid" and is recovered as a no-op, never surfaced as an error.
type ReferralEvent struct {
	ID         string            `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID string            `gorm:"type:uuid;not null;uniqueIndex:idx_referral_events_pair" json:"referrer_id"`
	ReferralID string            `gorm:"type:uuid;not null;uniqueIndex:idx_referral_events_pair" json:"referral_id"`
	EventType  ReferralEventType `gorm:"type:varchar(50);not null;uniqueIndex:idx_referral_events_pair" json:"event_type"`
	RewardPro  int64             `gorm:"not null" json:"reward_pro"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
}
