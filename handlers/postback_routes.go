// handlers/postback_routes.go
package handlers

import (
	"errors"
	"strconv"

	"promo-reward-system/services"
	"promo-reward-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// SetupPostbackRoutes wires the offer provider's server-to-server postback.
// The HMAC signature over (sub1, status, offer_id) is verified before any
// ledger call; only "deposit" postbacks settle, everything else is
// acknowledged and ignored.
func SetupPostbackRoutes(app *fiber.App, ledger *services.LedgerService, postbackSecret string, log *logrus.Logger) {
	app.Post("/postback", func(c *fiber.Ctx) error {
		var req struct {
			Sub1      string `json:"sub1"`
			Status    string `json:"status"`
			OfferID   string `json:"offer_id"`
			Signature string `json:"signature"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if !utils.VerifyPostbackSignature(postbackSecret, req.Sub1, req.Status, req.OfferID, req.Signature) {
			log.WithField("offer_id", req.OfferID).Warn("postback signature mismatch")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid signature"})
		}

		if req.Status != "deposit" {
			return c.JSON(fiber.Map{"ok": true})
		}

		telegramID, err := strconv.ParseInt(req.Sub1, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subject"})
		}

		if err := ledger.SettleOfferDeposit(c.Context(), telegramID, req.OfferID); err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
			case errors.Is(err, services.ErrOfferNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Offer not found"})
			default:
				log.WithError(err).Error("postback settlement failed")
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Settlement failed"})
			}
		}
		return c.JSON(fiber.Map{"ok": true})
	})
}
