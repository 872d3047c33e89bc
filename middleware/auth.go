// middleware/auth.go
package middleware

import (
	"errors"

	"promo-reward-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UserContextMiddleware resolves the identity forwarded by the WebApp
// session boundary (X-User-Id) to a User row and attaches it to the
// request context. Banned accounts are rejected here, before any ledger
// operation runs.
func UserContextMiddleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-Id",
			})
		}

		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "user not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load user",
			})
		}
		if user.Banned {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "account is blocked",
			})
		}

		c.Locals("user", &user)
		return c.Next()
	}
}

// CurrentUser returns the user attached by UserContextMiddleware.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}
