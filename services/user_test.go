package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/models"
)

func TestSyncUserKeepsPushToken(t *testing.T) {
	store := database.NewMemoryStore(nil)
	s := NewUserService(store)
	ctx := context.Background()

	u, err := s.SyncUser(ctx, models.Identity{ID: "u1", DisplayName: "  Lucía Pérez", Email: "lucia@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "lucía pérez", u.SearchName)

	require.NoError(t, s.SetPushToken(ctx, "u1", " tok "))
	_, err = s.SyncUser(ctx, models.Identity{ID: "u1", Email: "lucia@example.com"})
	require.NoError(t, err)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.FCMToken)
	assert.Equal(t, "lucia", got.DisplayName)
}

func TestUserServiceErrors(t *testing.T) {
	s := NewUserService(database.NewMemoryStore(nil))
	ctx := context.Background()

	_, err := s.SyncUser(ctx, models.Identity{})
	requireAppError(t, err, apperrors.UnauthorizedError)

	requireAppError(t, s.SetPushToken(ctx, "u1", ""), apperrors.ValidationError)
	requireAppError(t, s.SetPushToken(ctx, "ghost", "tok"), apperrors.NotFoundError)

	_, err = s.GetUser(ctx, "ghost")
	requireAppError(t, err, apperrors.NotFoundError)
}
