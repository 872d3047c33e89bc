// handlers/user_routes.go
package handlers

import (
	"encoding/json"
	"errors"
	"math"

	"promo-reward-system/middleware"
	"promo-reward-system/models"
	"promo-reward-system/services"
	"promo-reward-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupUserRoutes wires the end-user API: WebApp auth, offers, referrals,
// game play, wallet and withdrawals.
func SetupUserRoutes(app *fiber.App, db *gorm.DB, users *services.UserService, ledger *services.LedgerService, referrals *services.ReferralService, offers *services.OfferService, rewards services.RewardAmounts, botToken string) {
	app.Post("/api/auth/telegram", func(c *fiber.Ctx) error {
		var req struct {
			InitData string `json:"initData"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		parsed, err := utils.ValidateInitData(req.InitData, botToken)
		if err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid Telegram data"})
		}
		rawUser, ok := parsed["user"]
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No user data"})
		}

		var userData struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		}
		if err := json.Unmarshal([]byte(rawUser), &userData); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed user data"})
		}

		var username *string
		if userData.Username != "" {
			username = &userData.Username
		}

		user, err := users.EnsureUser(c.Context(), userData.ID, username, 0)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to authenticate"})
		}

		// Optional login bonus, disabled when the configured amount is 0.
		if rewards.LoginPro > 0 && !user.Banned {
			if entry, err := ledger.CreditBonus(c.Context(), user.ID, rewards.LoginPro, models.TxTypeLoginBonus); err == nil {
				user.BalancePro += entry.AmountPro
			}
		}

		return c.JSON(fiber.Map{
			"id":          user.ID,
			"telegram_id": user.TelegramID,
			"username":    user.Username,
			"balance_pro": user.BalancePro,
			"is_deposit":  user.IsDeposit,
			"banned":      user.Banned,
		})
	})

	app.Get("/api/offers", offers.GetActiveOffers)

	// Secured routes: resolved user context, banned accounts rejected.
	secured := app.Group("/api", middleware.UserContextMiddleware(db))

	secured.Get("/referrals", func(c *fiber.Ctx) error {
		user := middleware.CurrentUser(c)

		total, withDeposit, err := referrals.Stats(c.Context(), user.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch referral stats"})
		}
		return c.JSON(fiber.Map{
			"total_referrals":        total,
			"referrals_with_deposit": withDeposit,
			"invite_reward_pro":      rewards.InvitePro,
			"deposit_reward_pro":     rewards.DepositPro,
		})
	})

	secured.Post("/game/play", func(c *fiber.Ctx) error {
		user := middleware.CurrentUser(c)
		if !user.IsDeposit {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Game is available after a deposit"})
		}

		if _, err := ledger.CreditBonus(c.Context(), user.ID, rewards.GamePro, models.TxTypeGameBonus); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to credit game bonus"})
		}

		fresh, err := users.GetByID(c.Context(), user.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reload balance"})
		}
		return c.JSON(fiber.Map{
			"ok":          true,
			"added_pro":   rewards.GamePro,
			"balance_pro": fresh.BalancePro,
		})
	})

	secured.Get("/wallet", func(c *fiber.Ctx) error {
		user := middleware.CurrentUser(c)
		balanceUSD := math.Round(float64(user.BalancePro)/float64(rewards.RateProUSD)*100) / 100
		return c.JSON(fiber.Map{
			"balance_pro": user.BalancePro,
			"balance_usd": balanceUSD,
			"rate":        rewards.RateProUSD,
		})
	})

	secured.Post("/withdraw", func(c *fiber.Ctx) error {
		user := middleware.CurrentUser(c)

		var req struct {
			AmountPro int64  `json:"amount_pro"`
			Details   string `json:"details"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.AmountPro <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount_pro must be positive"})
		}

		if _, err := ledger.RequestWithdrawal(c.Context(), user.ID, req.AmountPro, req.Details); err != nil {
			if errors.Is(err, services.ErrInsufficientFunds) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Insufficient PRO balance"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to request withdrawal"})
		}
		return c.JSON(fiber.Map{"ok": true, "status": "pending"})
	})
}
