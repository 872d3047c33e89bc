// middleware/admin.go
package middleware

import (
	"crypto/hmac"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
)

// AdminAuthMiddleware validates the X-Admin-Token header against the
// shared admin secret. Comparison is constant time.
func AdminAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("ADMIN_TOKEN")
	if expectedToken == "" {
		log.Fatal("ADMIN_TOKEN is not set, admin surface cannot authenticate")
	}

	return func(c *fiber.Ctx) error {
		token := c.Get("X-Admin-Token")
		if token == "" || !hmac.Equal([]byte(token), []byte(expectedToken)) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "invalid admin token",
			})
		}
		return c.Next()
	}
}
