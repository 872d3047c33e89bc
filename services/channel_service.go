// services/channel_service.go
package services

import (
	"context"
	"errors"

	"promo-reward-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ChannelService struct {
	DB  *gorm.DB
	TG  TelegramClient
	Log *logrus.Logger
}

func NewChannelService(db *gorm.DB, tg TelegramClient, log *logrus.Logger) *ChannelService {
	return &ChannelService{DB: db, TG: tg, Log: log}
}

var memberStatuses = map[string]bool{
	"member":        true,
	"administrator": true,
	"creator":       true,
}

// MissingRequiredChannels returns the required channels the user has not
// joined. A membership query error counts conservatively as not-a-member.
func (s *ChannelService) MissingRequiredChannels(ctx context.Context, telegramID int64) ([]models.Channel, error) {
	var channels []models.Channel
	if err := s.DB.WithContext(ctx).Where("is_required = ?", true).Find(&channels).Error; err != nil {
		return nil, err
	}

	missing := make([]models.Channel, 0, len(channels))
	for _, channel := range channels {
		status, err := s.TG.GetChatMember(ctx, channel.ChatID, telegramID)
		if err != nil {
			s.Log.WithFields(logrus.Fields{
				"chat_id":     channel.ChatID,
				"telegram_id": telegramID,
			}).WithError(err).Warn("membership check failed, treating as not a member")
			missing = append(missing, channel)
			continue
		}
		if !memberStatuses[status] {
			missing = append(missing, channel)
		}
	}
	return missing, nil
}

// --- Admin Handlers ---

// ListChannels returns all channels (Admin only)
func (s *ChannelService) ListChannels(c *fiber.Ctx) error {
	var channels []models.Channel
	if err := s.DB.Find(&channels).Error; err != nil {
		s.Log.WithError(err).Error("failed to list channels")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch channels"})
	}
	return c.JSON(channels)
}

// CreateChannel creates a new channel (Admin only)
func (s *ChannelService) CreateChannel(c *fiber.Ctx) error {
	var req struct {
		ChatID     string `json:"chat_id"`
		Link       string `json:"link"`
		Title      string `json:"title"`
		IsRequired *bool  `json:"is_required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ChatID == "" || req.Link == "" || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "chat_id, link and title are required"})
	}

	channel := models.Channel{
		ID:         uuid.NewString(),
		ChatID:     req.ChatID,
		Link:       req.Link,
		Title:      req.Title,
		IsRequired: true,
	}
	if req.IsRequired != nil {
		channel.IsRequired = *req.IsRequired
	}

	if err := s.DB.Create(&channel).Error; err != nil {
		s.Log.WithError(err).Error("failed to create channel")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create channel"})
	}
	return c.Status(fiber.StatusCreated).JSON(channel)
}

// UpdateChannel updates an existing channel (Admin only)
func (s *ChannelService) UpdateChannel(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid channel ID"})
	}

	var channel models.Channel
	if err := s.DB.First(&channel, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		ChatID     *string `json:"chat_id"`
		Link       *string `json:"link"`
		Title      *string `json:"title"`
		IsRequired *bool   `json:"is_required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.ChatID != nil {
		channel.ChatID = *req.ChatID
	}
	if req.Link != nil {
		channel.Link = *req.Link
	}
	if req.Title != nil {
		channel.Title = *req.Title
	}
	if req.IsRequired != nil {
		channel.IsRequired = *req.IsRequired
	}

	if err := s.DB.Save(&channel).Error; err != nil {
		s.Log.WithError(err).Error("failed to update channel")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update channel"})
	}
	return c.JSON(channel)
}

// DeleteChannel deletes a channel (Admin only)
func (s *ChannelService) DeleteChannel(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid channel ID"})
	}

	var channel models.Channel
	if err := s.DB.First(&channel, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Delete(&channel).Error; err != nil {
		s.Log.WithError(err).Error("failed to delete channel")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete channel"})
	}
	return c.JSON(fiber.Map{"message": "Channel deleted successfully"})
}
