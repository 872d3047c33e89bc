// services/broadcast_service.go
package services

import (
	"context"
	"errors"

	"promo-reward-system/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidBroadcastType  = errors.New("invalid broadcast type")
	ErrMissingBroadcastMedia = errors.New("broadcast media is required")
	ErrInvalidAudience       = errors.New("invalid broadcast audience")
	ErrBroadcastNotFound     = errors.New("broadcast not found")
)

// BroadcastService is the producer side of the broadcast pipeline: it
// validates and persists jobs, and exposes their delivery counters. The
// delivery worker is the sole mutator after creation.
type BroadcastService struct {
	DB  *gorm.DB
	Log *logrus.Logger
}

func NewBroadcastService(db *gorm.DB, log *logrus.Logger) *BroadcastService {
	return &BroadcastService{DB: db, Log: log}
}

// BroadcastSpec is the admin-supplied description of one broadcast.
type BroadcastSpec struct {
	Type        models.BroadcastType
	Text        *string
	MediaFileID *string
	MediaURL    *string
	ButtonText  *string
	ButtonURL   *string
	Audience    models.BroadcastAudience
}

// AudienceQuery scopes a User query to the segment a broadcast targets.
// The filter runs fresh on every delivery pass, so bans and new deposits
// change membership between passes.
func AudienceQuery(db *gorm.DB, audience models.BroadcastAudience) *gorm.DB {
	q := db.Model(&models.User{}).Where("banned = ?", false)
	if audience == models.AudienceDepositOnly {
		q = q.Where("is_deposit = ?", true)
	}
	return q
}

// Enqueue validates the spec, pins the addressable audience size and
// persists the job. Delivery happens asynchronously in the worker; there
// is no coupling to the request that created the job.
func (s *BroadcastService) Enqueue(ctx context.Context, spec BroadcastSpec) (*models.Broadcast, error) {
	switch spec.Type {
	case models.BroadcastTypeText:
	case models.BroadcastTypePhoto, models.BroadcastTypeVideo:
		if (spec.MediaFileID == nil || *spec.MediaFileID == "") && (spec.MediaURL == nil || *spec.MediaURL == "") {
			return nil, ErrMissingBroadcastMedia
		}
	default:
		return nil, ErrInvalidBroadcastType
	}
	if spec.Audience != models.AudienceAll && spec.Audience != models.AudienceDepositOnly {
		return nil, ErrInvalidAudience
	}

	var totalUsers int64
	if err := AudienceQuery(s.DB.WithContext(ctx), spec.Audience).Count(&totalUsers).Error; err != nil {
		return nil, err
	}

	broadcast := &models.Broadcast{
		ID:          uuid.NewString(),
		Type:        spec.Type,
		Text:        spec.Text,
		MediaFileID: spec.MediaFileID,
		MediaURL:    spec.MediaURL,
		ButtonText:  spec.ButtonText,
		ButtonURL:   spec.ButtonURL,
		Audience:    spec.Audience,
		TotalUsers:  totalUsers,
	}
	if err := s.DB.WithContext(ctx).Create(broadcast).Error; err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"broadcast_id": broadcast.ID,
		"type":         broadcast.Type,
		"audience":     broadcast.Audience,
		"total_users":  totalUsers,
	}).Info("broadcast queued")
	return broadcast, nil
}

// Get returns one broadcast with its counters.
func (s *BroadcastService) Get(ctx context.Context, id string) (*models.Broadcast, error) {
	var broadcast models.Broadcast
	if err := s.DB.WithContext(ctx).First(&broadcast, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBroadcastNotFound
		}
		return nil, err
	}
	return &broadcast, nil
}

// List returns all broadcasts, newest first.
func (s *BroadcastService) List(ctx context.Context) ([]models.Broadcast, error) {
	var broadcasts []models.Broadcast
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&broadcasts).Error; err != nil {
		return nil, err
	}
	return broadcasts, nil
}
