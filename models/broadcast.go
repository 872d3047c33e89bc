package models

import "time"

type BroadcastType string

const (
	BroadcastTypeText  BroadcastType = "text"
	BroadcastTypePhoto BroadcastType = "photo"
	BroadcastTypeVideo BroadcastType = "video"
)

type BroadcastAudience string

const (
	AudienceAll         BroadcastAudience = "all"
	AudienceDepositOnly BroadcastAudience = "deposit_only"
)

// Broadcast is one persisted request to deliver a message to a computed
// audience segment. It is created by the admin surface and from then on
// mutated only by the delivery worker. A broadcast is open while
// sent_ok + sent_fail < total_users and terminal once the counts reach
// the total.
type Broadcast struct {
	ID          string            `gorm:"primaryKey;type:uuid" json:"id"`
	Type        BroadcastType     `gorm:"type:varchar(20);not null" json:"type"`
	Text        *string           `gorm:"type:text" json:"text,omitempty"`
	MediaFileID *string           `gorm:"type:varchar(500)" json:"media_file_id,omitempty"`
	MediaURL    *string           `gorm:"type:varchar(500)" json:"media_url,omitempty"`
	ButtonText  *string           `gorm:"type:varchar(100)" json:"button_text,omitempty"`
	ButtonURL   *string           `gorm:"type:varchar(500)" json:"button_url,omitempty"`
	Audience    BroadcastAudience `gorm:"type:varchar(50);not null" json:"audience"`
	TotalUsers  int64             `gorm:"not null" json:"total_users"`
	SentOK      int64             `gorm:"column:sent_ok;not null;default:0" json:"sent_ok"`
	SentFail    int64             `gorm:"not null;default:0" json:"sent_fail"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// BroadcastDelivery marks one send attempt for one recipient of one
// broadcast. The unique index makes resumed passes skip recipients that
// were already attempted, so a restart mid-broadcast never re-sends.
type BroadcastDelivery struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	BroadcastID string    `gorm:"type:uuid;not null;uniqueIndex:idx_broadcast_deliveries_recipient" json:"broadcast_id"`
	UserID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_broadcast_deliveries_recipient" json:"user_id"`
	Delivered   bool      `gorm:"not null;default:false" json:"delivered"`
	Error       *string   `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
