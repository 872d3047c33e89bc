// handlers/admin_routes.go
package handlers

import (
	"errors"
	"fmt"
	"path/filepath"

	"promo-reward-system/middleware"
	"promo-reward-system/models"
	"promo-reward-system/services"
	"promo-reward-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SetupAdminRoutes wires the operator surface: broadcast management, user
// moderation, balance adjustments, the offer/channel catalogs and the
// transaction audit trail. Everything sits behind the admin token.
func SetupAdminRoutes(app *fiber.App, db *gorm.DB, users *services.UserService, ledger *services.LedgerService, broadcasts *services.BroadcastService, offers *services.OfferService, channels *services.ChannelService, media *utils.MediaStore, log *logrus.Logger) {
	admin := app.Group("/admin", middleware.AdminAuthMiddleware())

	// --- Broadcasts ---

	admin.Post("/broadcasts", func(c *fiber.Ctx) error {
		var req struct {
			Type        string  `json:"type"`
			Text        *string `json:"text"`
			MediaFileID *string `json:"media_file_id"`
			MediaURL    *string `json:"media_url"`
			ButtonText  *string `json:"button_text"`
			ButtonURL   *string `json:"button_url"`
			Audience    string  `json:"audience"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		broadcast, err := broadcasts.Enqueue(c.Context(), services.BroadcastSpec{
			Type:        models.BroadcastType(req.Type),
			Text:        req.Text,
			MediaFileID: req.MediaFileID,
			MediaURL:    req.MediaURL,
			ButtonText:  req.ButtonText,
			ButtonURL:   req.ButtonURL,
			Audience:    models.BroadcastAudience(req.Audience),
		})
		if err != nil {
			switch {
			case errors.Is(err, services.ErrInvalidBroadcastType),
				errors.Is(err, services.ErrMissingBroadcastMedia),
				errors.Is(err, services.ErrInvalidAudience):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			default:
				log.WithError(err).Error("failed to enqueue broadcast")
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to enqueue broadcast"})
			}
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"queued":       true,
			"broadcast_id": broadcast.ID,
			"total_users":  broadcast.TotalUsers,
		})
	})

	admin.Get("/broadcasts", func(c *fiber.Ctx) error {
		list, err := broadcasts.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch broadcasts"})
		}
		return c.JSON(list)
	})

	admin.Get("/broadcasts/:id", func(c *fiber.Ctx) error {
		broadcast, err := broadcasts.Get(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, services.ErrBroadcastNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Broadcast not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.JSON(fiber.Map{
			"id":          broadcast.ID,
			"sent_ok":     broadcast.SentOK,
			"sent_fail":   broadcast.SentFail,
			"total_users": broadcast.TotalUsers,
			"created_at":  broadcast.CreatedAt,
		})
	})

	admin.Post("/broadcasts/media", func(c *fiber.Ctx) error {
		if media == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Media storage not configured"})
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
		}

		key := fmt.Sprintf("broadcasts/%s%s", uuid.NewString(), filepath.Ext(fileHeader.Filename))
		url, err := media.Upload(c.Context(), fileHeader, key)
		if err != nil {
			log.WithError(err).Error("broadcast media upload failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Upload failed"})
		}
		return c.JSON(fiber.Map{"media_url": url})
	})

	// --- Users ---

	admin.Get("/users", func(c *fiber.Ctx) error {
		list, err := users.ListUsers(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch users"})
		}
		return c.JSON(list)
	})

	admin.Post("/users/:id/ban", func(c *fiber.Ctx) error {
		var req struct {
			Banned bool `json:"banned"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if err := users.SetBanned(c.Context(), c.Params("id"), req.Banned); err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user"})
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	admin.Post("/users/:id/balance", func(c *fiber.Ctx) error {
		var req struct {
			DeltaPro int64  `json:"delta_pro"`
			Reason   string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if _, err := ledger.AdminAdjust(c.Context(), c.Params("id"), req.DeltaPro, req.Reason); err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to adjust balance"})
		}

		fresh, err := users.GetByID(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reload user"})
		}
		return c.JSON(fiber.Map{"ok": true, "balance_pro": fresh.BalancePro})
	})

	// --- Offers ---

	admin.Get("/offers", offers.GetAllOffers)
	admin.Post("/offers", offers.CreateOffer)
	admin.Put("/offers/:id", offers.UpdateOffer)
	admin.Delete("/offers/:id", offers.DeleteOffer)

	// --- Channels ---

	admin.Get("/channels", channels.ListChannels)
	admin.Post("/channels", channels.CreateChannel)
	admin.Put("/channels/:id", channels.UpdateChannel)
	admin.Delete("/channels/:id", channels.DeleteChannel)

	// --- Transactions ---

	admin.Get("/transactions", func(c *fiber.Ctx) error {
		var transactions []models.Transaction
		if err := db.WithContext(c.Context()).Order("created_at DESC").Find(&transactions).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch transactions"})
		}
		return c.JSON(transactions)
	})
}
