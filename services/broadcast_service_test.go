package services

import (
	"context"
	"testing"

	"promo-reward-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestEnqueueValidation(t *testing.T) {
	db := testDB(t)
	broadcasts := NewBroadcastService(db, testLogger())
	ctx := context.Background()

	_, err := broadcasts.Enqueue(ctx, BroadcastSpec{
		Type:     "sticker",
		Audience: models.AudienceAll,
	})
	assert.ErrorIs(t, err, ErrInvalidBroadcastType)

	_, err = broadcasts.Enqueue(ctx, BroadcastSpec{
		Type:     models.BroadcastTypePhoto,
		Text:     strPtr("caption"),
		Audience: models.AudienceAll,
	})
	assert.ErrorIs(t, err, ErrMissingBroadcastMedia)

	_, err = broadcasts.Enqueue(ctx, BroadcastSpec{
		Type:     models.BroadcastTypeText,
		Text:     strPtr("hello"),
		Audience: "vip",
	})
	assert.ErrorIs(t, err, ErrInvalidAudience)

	// A photo with a file id but no URL is fine.
	_, err = broadcasts.Enqueue(ctx, BroadcastSpec{
		Type:        models.BroadcastTypePhoto,
		MediaFileID: strPtr("AgACAgIAAxk"),
		Audience:    models.AudienceAll,
	})
	assert.NoError(t, err)
}

func TestEnqueuePinsAudienceSize(t *testing.T) {
	db := testDB(t)
	broadcasts := NewBroadcastService(db, testLogger())
	ctx := context.Background()

	depositor := seedUser(t, db, 100, 0)
	require.NoError(t, db.Model(depositor).Update("is_deposit", true).Error)
	seedUser(t, db, 200, 0)
	banned := seedUser(t, db, 300, 0)
	require.NoError(t, db.Model(banned).Update("banned", true).Error)

	all, err := broadcasts.Enqueue(ctx, BroadcastSpec{
		Type:     models.BroadcastTypeText,
		Text:     strPtr("for everyone"),
		Audience: models.AudienceAll,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.TotalUsers)

	deposits, err := broadcasts.Enqueue(ctx, BroadcastSpec{
		Type:     models.BroadcastTypeText,
		Text:     strPtr("for depositors"),
		Audience: models.AudienceDepositOnly,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deposits.TotalUsers)
}

func TestBroadcastGetAndList(t *testing.T) {
	db := testDB(t)
	broadcasts := NewBroadcastService(db, testLogger())
	ctx := context.Background()

	created, err := broadcasts.Enqueue(ctx, BroadcastSpec{
		Type:     models.BroadcastTypeText,
		Text:     strPtr("hi"),
		Audience: models.AudienceAll,
	})
	require.NoError(t, err)

	got, err := broadcasts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = broadcasts.Get(ctx, "b5bdc2a2-9f53-4c2e-9f2e-000000000000")
	assert.ErrorIs(t, err, ErrBroadcastNotFound)

	list, err := broadcasts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
