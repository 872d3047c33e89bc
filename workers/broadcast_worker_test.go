package workers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"promo-reward-system/models"
	"promo-reward-system/services"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sendFake records every outbound send and fails chats listed in failing.
type sendFake struct {
	sent    []int64
	failing map[int64]bool
}

func (f *sendFake) record(chatID int64) error {
	f.sent = append(f.sent, chatID)
	if f.failing[chatID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	return nil
}

func (f *sendFake) SendMessage(_ context.Context, chatID int64, _ string, _ any) error {
	return f.record(chatID)
}
func (f *sendFake) SendPhoto(_ context.Context, chatID int64, _ string, _ string, _ any) error {
	return f.record(chatID)
}
func (f *sendFake) SendVideo(_ context.Context, chatID int64, _ string, _ string, _ any) error {
	return f.record(chatID)
}
func (f *sendFake) GetChatMember(context.Context, string, int64) (string, error) {
	return "", errors.New("not implemented")
}
func (f *sendFake) GetUpdates(context.Context, int64, int) ([]services.Update, error) {
	return nil, errors.New("not implemented")
}
func (f *sendFake) AnswerCallbackQuery(context.Context, string) error {
	return errors.New("not implemented")
}
func (f *sendFake) ApproveChatJoinRequest(context.Context, int64, int64) error {
	return errors.New("not implemented")
}

func workerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Broadcast{},
		&models.BroadcastDelivery{},
	))
	return db
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestWorker(db *gorm.DB, fake *sendFake) *BroadcastWorker {
	// Near-zero spacing keeps the tests fast without bypassing the limiter.
	return NewBroadcastWorker(db, fake, time.Microsecond, time.Second, quietLogger())
}

func seedAudience(t *testing.T, db *gorm.DB, n int) []models.User {
	t.Helper()

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		u := models.User{
			ID:         uuid.NewString(),
			TelegramID: int64(1000 + i),
		}
		require.NoError(t, db.Create(&u).Error)
		users = append(users, u)
	}
	return users
}

func seedBroadcast(t *testing.T, db *gorm.DB, audience models.BroadcastAudience, total int64) *models.Broadcast {
	t.Helper()

	text := "promo drop"
	b := &models.Broadcast{
		ID:         uuid.NewString(),
		Type:       models.BroadcastTypeText,
		Text:       &text,
		Audience:   audience,
		TotalUsers: total,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

func TestRunPassDeliversWholeAudience(t *testing.T) {
	db := workerTestDB(t)
	users := seedAudience(t, db, 10)
	fake := &sendFake{failing: map[int64]bool{
		users[2].TelegramID: true,
		users[5].TelegramID: true,
		users[8].TelegramID: true,
	}}
	worker := newTestWorker(db, fake)

	b := seedBroadcast(t, db, models.AudienceAll, 10)
	worker.RunPass(context.Background())

	var got models.Broadcast
	require.NoError(t, db.First(&got, "id = ?", b.ID).Error)
	assert.Equal(t, int64(7), got.SentOK)
	assert.Equal(t, int64(3), got.SentFail)
	assert.Len(t, fake.sent, 10)

	var failures []models.BroadcastDelivery
	require.NoError(t, db.Where("broadcast_id = ? AND delivered = ?", b.ID, false).Find(&failures).Error)
	require.Len(t, failures, 3)
	for _, d := range failures {
		require.NotNil(t, d.Error)
		assert.Contains(t, *d.Error, "blocked")
	}
}

func TestRunPassDoesNotResend(t *testing.T) {
	db := workerTestDB(t)
	seedAudience(t, db, 5)
	fake := &sendFake{}
	worker := newTestWorker(db, fake)

	b := seedBroadcast(t, db, models.AudienceAll, 5)
	worker.RunPass(context.Background())
	require.Len(t, fake.sent, 5)

	// The finished broadcast is terminal; another pass touches nobody.
	worker.RunPass(context.Background())
	assert.Len(t, fake.sent, 5)

	var got models.Broadcast
	require.NoError(t, db.First(&got, "id = ?", b.ID).Error)
	assert.Equal(t, int64(5), got.SentOK)
}

func TestRunPassResumesAfterInterrupt(t *testing.T) {
	db := workerTestDB(t)
	users := seedAudience(t, db, 6)
	fake := &sendFake{}
	worker := newTestWorker(db, fake)

	b := seedBroadcast(t, db, models.AudienceAll, 6)

	// Simulate a pass that died after three recipients: claimed rows exist,
	// counters already credited.
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.BroadcastDelivery{
			ID:          uuid.NewString(),
			BroadcastID: b.ID,
			UserID:      users[i].ID,
			Delivered:   true,
		}).Error)
	}
	require.NoError(t, db.Model(&models.Broadcast{}).
		Where("id = ?", b.ID).
		Update("sent_ok", 3).Error)

	worker.RunPass(context.Background())

	// Only the unattempted half receives a message.
	assert.Len(t, fake.sent, 3)
	for _, chatID := range fake.sent {
		assert.GreaterOrEqual(t, chatID, users[3].TelegramID)
	}

	var got models.Broadcast
	require.NoError(t, db.First(&got, "id = ?", b.ID).Error)
	assert.Equal(t, int64(6), got.SentOK)
}

func TestRunPassSkipsBannedAndHonorsSegment(t *testing.T) {
	db := workerTestDB(t)
	users := seedAudience(t, db, 4)
	require.NoError(t, db.Model(&users[0]).Update("banned", true).Error)
	require.NoError(t, db.Model(&users[1]).Update("is_deposit", true).Error)
	fake := &sendFake{}
	worker := newTestWorker(db, fake)

	// Pinned total of 2 reflects the segment size at creation time.
	b := seedBroadcast(t, db, models.AudienceDepositOnly, 2)
	require.NoError(t, db.Model(&users[2]).Update("is_deposit", true).Error)

	worker.RunPass(context.Background())

	assert.ElementsMatch(t, []int64{users[1].TelegramID, users[2].TelegramID}, fake.sent)

	var got models.Broadcast
	require.NoError(t, db.First(&got, "id = ?", b.ID).Error)
	assert.Equal(t, int64(2), got.SentOK)
}

func TestReconcileClosesShrunkAudience(t *testing.T) {
	db := workerTestDB(t)
	users := seedAudience(t, db, 3)
	fake := &sendFake{}
	worker := newTestWorker(db, fake)

	// Pinned at 3, but one user is banned before the first pass runs. The
	// job can never reach its original total; reconciliation lowers it.
	b := seedBroadcast(t, db, models.AudienceAll, 3)
	require.NoError(t, db.Model(&users[0]).Update("banned", true).Error)

	worker.RunPass(context.Background())

	var got models.Broadcast
	require.NoError(t, db.First(&got, "id = ?", b.ID).Error)
	assert.Equal(t, int64(2), got.SentOK)
	assert.Equal(t, int64(2), got.TotalUsers)

	// Terminal now: a further pass sends nothing.
	worker.RunPass(context.Background())
	assert.Len(t, fake.sent, 2)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	db := workerTestDB(t)
	worker := newTestWorker(db, &sendFake{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
