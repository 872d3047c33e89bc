// workers/bot_worker.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"promo-reward-system/models"
	"promo-reward-system/services"

	"github.com/sirupsen/logrus"
)

const (
	recheckCallback   = "recheck_subs"
	refArgPrefix      = "ref_"
	longPollTimeout   = 30 // seconds, server side of getUpdates
	pollRetryInterval = 3 * time.Second
)

// BotWorker drives the Telegram bot surface over getUpdates long polling:
// /start (with optional referral payload), /ref, the subscription recheck
// callback and channel join requests.
type BotWorker struct {
	TG          services.TelegramClient
	Users       *services.UserService
	Channels    *services.ChannelService
	WebAppURL   string
	BotUsername string
	Log         *logrus.Logger
}

func NewBotWorker(tg services.TelegramClient, users *services.UserService, channels *services.ChannelService, webAppURL, botUsername string, log *logrus.Logger) *BotWorker {
	return &BotWorker{
		TG:          tg,
		Users:       users,
		Channels:    channels,
		WebAppURL:   webAppURL,
		BotUsername: botUsername,
		Log:         log,
	}
}

func (w *BotWorker) Start(ctx context.Context) {
	w.Log.Info("bot worker started")
	go w.run(ctx)
}

func (w *BotWorker) run(ctx context.Context) {
	var offset int64
	for {
		if ctx.Err() != nil {
			w.Log.Info("bot worker stopped")
			return
		}

		updates, err := w.TG.GetUpdates(ctx, offset, longPollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.Log.Info("bot worker stopped")
				return
			}
			w.Log.WithError(err).Warn("getUpdates failed, retrying")
			select {
			case <-ctx.Done():
			case <-time.After(pollRetryInterval):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			w.dispatch(ctx, update)
		}
	}
}

func (w *BotWorker) dispatch(ctx context.Context, update services.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		w.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		w.handleCallback(ctx, update.CallbackQuery)
	case update.ChatJoinRequest != nil:
		w.handleJoinRequest(ctx, update.ChatJoinRequest)
	}
}

func (w *BotWorker) handleMessage(ctx context.Context, msg *services.IncomingMessage) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		w.handleStart(ctx, msg)
	case strings.HasPrefix(text, "/ref"):
		w.handleRef(ctx, msg)
	}
}

func (w *BotWorker) handleStart(ctx context.Context, msg *services.IncomingMessage) {
	var referrerID int64
	if parts := strings.SplitN(msg.Text, " ", 2); len(parts) == 2 {
		arg := strings.TrimSpace(parts[1])
		if strings.HasPrefix(arg, refArgPrefix) {
			referrerID, _ = strconv.ParseInt(strings.TrimPrefix(arg, refArgPrefix), 10, 64)
		}
	}

	var username *string
	if msg.From.Username != "" {
		username = &msg.From.Username
	}

	user, err := w.Users.EnsureUser(ctx, msg.From.ID, username, referrerID)
	if err != nil {
		w.Log.WithError(err).WithField("telegram_id", msg.From.ID).Error("failed to ensure user")
		return
	}
	if user.Banned {
		w.reply(ctx, msg.Chat.ID, "Your account is blocked.", nil)
		return
	}

	missing, err := w.Channels.MissingRequiredChannels(ctx, msg.From.ID)
	if err != nil {
		w.Log.WithError(err).Error("channel gate check failed")
		return
	}
	if len(missing) > 0 {
		w.reply(ctx, msg.Chat.ID, "Please subscribe to the channels below first:", channelsKeyboard(missing))
		return
	}

	w.reply(ctx, msg.Chat.ID, "Welcome! Tap the button below to open the app.", w.webAppKeyboard())
}

func (w *BotWorker) handleRef(ctx context.Context, msg *services.IncomingMessage) {
	user, err := w.Users.GetByTelegramID(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			w.reply(ctx, msg.Chat.ID, "Use /start first.", nil)
			return
		}
		w.Log.WithError(err).Error("failed to load user for /ref")
		return
	}
	if user.Banned {
		w.reply(ctx, msg.Chat.ID, "Your account is blocked.", nil)
		return
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s%d", w.BotUsername, refArgPrefix, msg.From.ID)
	w.reply(ctx, msg.Chat.ID, "Your referral link:\n"+link, nil)
}

func (w *BotWorker) handleCallback(ctx context.Context, cb *services.CallbackQuery) {
	if cb.Data != recheckCallback || cb.Message == nil {
		return
	}

	missing, err := w.Channels.MissingRequiredChannels(ctx, cb.From.ID)
	if err != nil {
		w.Log.WithError(err).Error("channel gate recheck failed")
		return
	}
	if len(missing) > 0 {
		w.reply(ctx, cb.Message.Chat.ID, "Subscription not confirmed yet. Check again after subscribing.", channelsKeyboard(missing))
	} else {
		w.reply(ctx, cb.Message.Chat.ID, "Subscription confirmed! Open the app.", w.webAppKeyboard())
	}
	if err := w.TG.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		w.Log.WithError(err).Warn("failed to answer callback query")
	}
}

func (w *BotWorker) handleJoinRequest(ctx context.Context, req *services.ChatJoinRequest) {
	if err := w.TG.ApproveChatJoinRequest(ctx, req.Chat.ID, req.From.ID); err != nil {
		w.Log.WithError(err).WithField("chat_id", req.Chat.ID).Warn("failed to approve join request")
		return
	}
	w.reply(ctx, req.From.ID, "✅ Request approved. Thanks for subscribing!", nil)
}

func (w *BotWorker) reply(ctx context.Context, chatID int64, text string, markup any) {
	if err := w.TG.SendMessage(ctx, chatID, text, markup); err != nil {
		w.Log.WithError(err).WithField("chat_id", chatID).Warn("failed to send bot reply")
	}
}

func (w *BotWorker) webAppKeyboard() map[string]any {
	return map[string]any{
		"keyboard": [][]map[string]any{{
			{"text": "🎮 Open WebApp", "web_app": map[string]string{"url": w.WebAppURL}},
		}},
		"resize_keyboard": true,
	}
}

func channelsKeyboard(channels []models.Channel) map[string]any {
	rows := make([][]map[string]any, 0, len(channels)+1)
	for _, channel := range channels {
		rows = append(rows, []map[string]any{{"text": channel.Title, "url": channel.Link}})
	}
	rows = append(rows, []map[string]any{{"text": "✅ I subscribed, check again", "callback_data": recheckCallback}})
	return map[string]any{"inline_keyboard": rows}
}
