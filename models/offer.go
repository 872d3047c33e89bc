package models

import "time"

// Offer is a catalog entry for an external conversion action and its fixed
// reward. Read-mostly; mutated only through the admin CRUD surface.
type Offer struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	Title     string `gorm:"not null" json:"title"`
	Slug      string `gorm:"index" json:"slug"`
	RewardPro int64  `gorm:"not null" json:"reward_pro"`
	Link      string `gorm:"type:varchar(500);not null" json:"link"`
	IsActive  bool   `gorm:"not null;default:true" json:"is_active"`
	IsLimited bool   `gorm:"not null;default:false" json:"is_limited"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
