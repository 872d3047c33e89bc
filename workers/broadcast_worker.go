// workers/broadcast_worker.go
package workers

import (
	"context"
	"time"

	"promo-reward-system/models"
	"promo-reward-system/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BroadcastWorker is the sole consumer of the broadcast table. Each pass it
// picks up every open broadcast, resolves the still-unattempted slice of its
// audience and delivers sequentially under the outbound rate limit.
//
// Every recipient is claimed with a broadcast_deliveries row before the send
// goes out, so an interrupted pass resumes where it stopped instead of
// re-sending: each eligible recipient is messaged at most once, ever.
type BroadcastWorker struct {
	DB           *gorm.DB
	TG           services.TelegramClient
	Limiter      *rate.Limiter
	PollInterval time.Duration
	Log          *logrus.Logger
}

// NewBroadcastWorker configures the worker. sendDelay is the minimum
// spacing between two outbound sends; the limiter preserves it regardless
// of how delivery is driven.
func NewBroadcastWorker(db *gorm.DB, tg services.TelegramClient, sendDelay, pollInterval time.Duration, log *logrus.Logger) *BroadcastWorker {
	return &BroadcastWorker{
		DB:           db,
		TG:           tg,
		Limiter:      rate.NewLimiter(rate.Every(sendDelay), 1),
		PollInterval: pollInterval,
		Log:          log,
	}
}

// Run schedules delivery passes until ctx is cancelled, then shuts the
// scheduler down cleanly. Singleton mode keeps a slow pass from overlapping
// with the next tick.
func (w *BroadcastWorker) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.PollInterval),
		gocron.NewTask(func() { w.RunPass(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	sched.Start()
	w.Log.WithField("poll_interval", w.PollInterval).Info("broadcast worker started")

	<-ctx.Done()
	w.Log.Info("broadcast worker stopping")
	return sched.Shutdown()
}

// RunPass executes one scan-resolve-send cycle over all open broadcasts.
func (w *BroadcastWorker) RunPass(ctx context.Context) {
	var open []models.Broadcast
	if err := w.DB.WithContext(ctx).
		Where("sent_ok + sent_fail < total_users").
		Order("created_at").
		Find(&open).Error; err != nil {
		w.Log.WithError(err).Error("failed to scan open broadcasts")
		return
	}

	for i := range open {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, &open[i])
	}
}

func (w *BroadcastWorker) deliver(ctx context.Context, b *models.Broadcast) {
	recipients, err := w.remainingAudience(ctx, b)
	if err != nil {
		w.Log.WithError(err).WithField("broadcast_id", b.ID).Error("failed to resolve audience")
		return
	}

	for i := range recipients {
		if ctx.Err() != nil {
			return
		}
		user := &recipients[i]

		claimed, err := w.claimRecipient(ctx, b, user)
		if err != nil {
			w.Log.WithError(err).WithFields(logrus.Fields{
				"broadcast_id": b.ID,
				"user_id":      user.ID,
			}).Error("failed to claim recipient")
			continue
		}
		if !claimed {
			// Another pass already attempted this recipient.
			continue
		}

		if err := w.Limiter.Wait(ctx); err != nil {
			return
		}

		sendErr := w.send(ctx, b, user.TelegramID)
		if err := w.recordResult(ctx, b, user, sendErr); err != nil {
			w.Log.WithError(err).WithFields(logrus.Fields{
				"broadcast_id": b.ID,
				"user_id":      user.ID,
			}).Error("failed to record delivery result")
		}
	}

	w.reconcile(ctx, b)
}

// remainingAudience is the eligible segment minus every recipient already
// attempted for this broadcast.
func (w *BroadcastWorker) remainingAudience(ctx context.Context, b *models.Broadcast) ([]models.User, error) {
	attempted := w.DB.Model(&models.BroadcastDelivery{}).
		Select("user_id").
		Where("broadcast_id = ?", b.ID)

	var users []models.User
	err := services.AudienceQuery(w.DB.WithContext(ctx), b.Audience).
		Where("id NOT IN (?)", attempted).
		Find(&users).Error
	return users, err
}

// claimRecipient inserts the per-recipient attempt marker. A conflict on
// the (broadcast, user) unique index means the recipient was claimed
// before; the send is skipped.
func (w *BroadcastWorker) claimRecipient(ctx context.Context, b *models.Broadcast, user *models.User) (bool, error) {
	delivery := models.BroadcastDelivery{
		ID:          uuid.NewString(),
		BroadcastID: b.ID,
		UserID:      user.ID,
	}
	res := w.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&delivery)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (w *BroadcastWorker) send(ctx context.Context, b *models.Broadcast, chatID int64) error {
	var markup any
	if b.ButtonText != nil && b.ButtonURL != nil {
		markup = services.InlineURLKeyboard(services.InlineButton{Text: *b.ButtonText, URL: *b.ButtonURL})
	}

	text := ""
	if b.Text != nil {
		text = *b.Text
	}

	media := ""
	if b.MediaFileID != nil && *b.MediaFileID != "" {
		media = *b.MediaFileID
	} else if b.MediaURL != nil {
		media = *b.MediaURL
	}

	switch b.Type {
	case models.BroadcastTypePhoto:
		return w.TG.SendPhoto(ctx, chatID, media, text, markup)
	case models.BroadcastTypeVideo:
		return w.TG.SendVideo(ctx, chatID, media, text, markup)
	default:
		return w.TG.SendMessage(ctx, chatID, text, markup)
	}
}

// recordResult finalizes the claimed delivery row and bumps the broadcast
// counter in one transaction. A send error is a counted failure, never
// fatal to the pass.
func (w *BroadcastWorker) recordResult(ctx context.Context, b *models.Broadcast, user *models.User, sendErr error) error {
	return w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"delivered": sendErr == nil}
		counter := "sent_ok"
		if sendErr != nil {
			msg := sendErr.Error()
			updates["error"] = msg
			counter = "sent_fail"
		}

		if err := tx.Model(&models.BroadcastDelivery{}).
			Where("broadcast_id = ? AND user_id = ?", b.ID, user.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&models.Broadcast{}).
			Where("id = ?", b.ID).
			Update(counter, gorm.Expr(counter+" + 1")).Error
	})
}

// reconcile closes out a broadcast whose audience shrank below the total
// pinned at creation: once nobody is left to attempt, the total is lowered
// to the attempted count so the job terminates instead of staying open
// forever.
func (w *BroadcastWorker) reconcile(ctx context.Context, b *models.Broadcast) {
	var remaining int64
	attempted := w.DB.Model(&models.BroadcastDelivery{}).
		Select("user_id").
		Where("broadcast_id = ?", b.ID)
	if err := services.AudienceQuery(w.DB.WithContext(ctx), b.Audience).
		Where("id NOT IN (?)", attempted).
		Count(&remaining).Error; err != nil {
		w.Log.WithError(err).WithField("broadcast_id", b.ID).Error("failed to count remaining audience")
		return
	}
	if remaining > 0 {
		return
	}

	res := w.DB.WithContext(ctx).Model(&models.Broadcast{}).
		Where("id = ? AND sent_ok + sent_fail < total_users", b.ID).
		Update("total_users", gorm.Expr("sent_ok + sent_fail"))
	if res.Error != nil {
		w.Log.WithError(res.Error).WithField("broadcast_id", b.ID).Error("failed to reconcile broadcast total")
		return
	}
	if res.RowsAffected > 0 {
		w.Log.WithField("broadcast_id", b.ID).Info("broadcast closed after audience shrank")
	}
}
