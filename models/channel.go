package models

import "time"

// Channel is a Telegram channel users may be required to join before the
// reward surface is unlocked. ChatID is the Telegram chat identifier
// (numeric id or @username), kept as a string for both forms.
type Channel struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChatID     string    `gorm:"type:varchar(255);not null" json:"chat_id"`
	Link       string    `gorm:"type:varchar(500);not null" json:"link"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	IsRequired bool      `gorm:"not null;default:true" json:"is_required"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
