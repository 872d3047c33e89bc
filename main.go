package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"promo-reward-system/handlers"
	"promo-reward-system/models"
	"promo-reward-system/services"
	"promo-reward-system/utils"
	"promo-reward-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultListenAddr        = ":8080"
	defaultBroadcastDelay    = 50 * time.Millisecond
	defaultBroadcastInterval = 5 * time.Second
)

func main() {
	log := utils.NewLogger()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, reading environment variables directly")
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		log.Fatal("BOT_TOKEN environment variable not set")
	}
	botUsername := os.Getenv("BOT_USERNAME")
	if botUsername == "" {
		log.Fatal("BOT_USERNAME environment variable not set")
	}
	webAppURL := os.Getenv("WEBAPP_URL")
	if webAppURL == "" {
		log.Fatal("WEBAPP_URL environment variable not set")
	}
	postbackSecret := os.Getenv("POSTBACK_SECRET")
	if postbackSecret == "" {
		log.Fatal("POSTBACK_SECRET environment variable not set")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.ReferralEvent{},
		&models.Offer{},
		&models.Channel{},
		&models.Broadcast{},
		&models.BroadcastDelivery{},
	); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	media, err := utils.NewMediaStoreFromEnv()
	if err != nil {
		log.WithError(err).Warn("media storage disabled")
		media = nil
	}

	rewards := services.LoadRewardAmounts()
	tg := services.NewBotAPI(botToken)

	referralService := services.NewReferralService(db, rewards, log)
	ledgerService := services.NewLedgerService(db, rewards, referralService, log)
	userService := services.NewUserService(db, referralService, log)
	offerService := services.NewOfferService(db, log)
	channelService := services.NewChannelService(db, tg, log)
	broadcastService := services.NewBroadcastService(db, log)

	app := fiber.New(fiber.Config{
		AppName: "promo-reward-system",
	})

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(splitTrim(allowedOrigins), ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-User-Id, X-Admin-Token",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	handlers.SetupUserRoutes(app, db, userService, ledgerService, referralService, offerService, rewards, botToken)
	handlers.SetupPostbackRoutes(app, ledgerService, postbackSecret, log)
	handlers.SetupAdminRoutes(app, db, userService, ledgerService, broadcastService, offerService, channelService, media, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broadcastWorker := workers.NewBroadcastWorker(
		db, tg,
		envDuration("BROADCAST_SEND_DELAY", defaultBroadcastDelay),
		envDuration("BROADCAST_POLL_INTERVAL", defaultBroadcastInterval),
		log,
	)
	go func() {
		if err := broadcastWorker.Run(ctx); err != nil {
			log.WithError(err).Error("broadcast worker exited")
		}
	}()

	botWorker := workers.NewBotWorker(tg, userService, channelService, webAppURL, botUsername, log)
	botWorker.Start(ctx)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = defaultListenAddr
	}
	go func() {
		if err := app.Listen(addr); err != nil {
			log.WithError(err).Error("server error")
		}
	}()
	log.WithField("addr", addr).Info("server running")

	<-ctx.Done()
	log.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
}

func splitTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
