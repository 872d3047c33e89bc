// services/offer_service.go
package services

import (
	"errors"

	"promo-reward-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type OfferService struct {
	DB  *gorm.DB
	Log *logrus.Logger
}

func NewOfferService(db *gorm.DB, log *logrus.Logger) *OfferService {
	return &OfferService{DB: db, Log: log}
}

// GetActiveOffers returns the offers shown to end users.
func (s *OfferService) GetActiveOffers(c *fiber.Ctx) error {
	var offers []models.Offer
	if err := s.DB.Where("is_active = ?", true).Find(&offers).Error; err != nil {
		s.Log.WithError(err).Error("failed to fetch active offers")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch offers"})
	}

	res := make([]fiber.Map, len(offers))
	for i, offer := range offers {
		res[i] = fiber.Map{
			"id":         offer.ID,
			"title":      offer.Title,
			"slug":       offer.Slug,
			"reward_pro": offer.RewardPro,
			"link":       offer.Link,
			"is_limited": offer.IsLimited,
		}
	}
	return c.JSON(res)
}

// --- Admin Handlers ---

// GetAllOffers returns every offer, active or not (Admin only)
func (s *OfferService) GetAllOffers(c *fiber.Ctx) error {
	var offers []models.Offer
	if err := s.DB.Find(&offers).Error; err != nil {
		s.Log.WithError(err).Error("failed to fetch offers")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch offers"})
	}
	return c.JSON(offers)
}

// CreateOffer creates a new offer (Admin only)
func (s *OfferService) CreateOffer(c *fiber.Ctx) error {
	var req struct {
		Title     string `json:"title"`
		RewardPro int64  `json:"reward_pro"`
		Link      string `json:"link"`
		IsActive  *bool  `json:"is_active"`
		IsLimited bool   `json:"is_limited"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" || req.Link == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and link are required"})
	}
	if req.RewardPro < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reward_pro must not be negative"})
	}

	offer := models.Offer{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Slug:      slug.Make(req.Title),
		RewardPro: req.RewardPro,
		Link:      req.Link,
		IsActive:  true,
		IsLimited: req.IsLimited,
	}
	if req.IsActive != nil {
		offer.IsActive = *req.IsActive
	}

	if err := s.DB.Create(&offer).Error; err != nil {
		s.Log.WithError(err).Error("failed to create offer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create offer"})
	}
	return c.Status(fiber.StatusCreated).JSON(offer)
}

// UpdateOffer updates an existing offer (Admin only)
func (s *OfferService) UpdateOffer(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid offer ID"})
	}

	var offer models.Offer
	if err := s.DB.First(&offer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Offer not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Title     *string `json:"title"`
		RewardPro *int64  `json:"reward_pro"`
		Link      *string `json:"link"`
		IsActive  *bool   `json:"is_active"`
		IsLimited *bool   `json:"is_limited"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		offer.Title = *req.Title
		offer.Slug = slug.Make(*req.Title)
	}
	if req.RewardPro != nil {
		if *req.RewardPro < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reward_pro must not be negative"})
		}
		offer.RewardPro = *req.RewardPro
	}
	if req.Link != nil {
		offer.Link = *req.Link
	}
	if req.IsActive != nil {
		offer.IsActive = *req.IsActive
	}
	if req.IsLimited != nil {
		offer.IsLimited = *req.IsLimited
	}

	if err := s.DB.Save(&offer).Error; err != nil {
		s.Log.WithError(err).Error("failed to update offer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update offer"})
	}
	return c.JSON(offer)
}

// DeleteOffer deletes an offer (Admin only)
func (s *OfferService) DeleteOffer(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid offer ID"})
	}

	var offer models.Offer
	if err := s.DB.First(&offer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Offer not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Delete(&offer).Error; err != nil {
		s.Log.WithError(err).Error("failed to delete offer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete offer"})
	}
	return c.JSON(fiber.Map{"message": "Offer deleted successfully"})
}
