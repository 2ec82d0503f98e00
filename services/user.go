package services

import (
	"context"
	"strings"
	"time"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/models"
)

// UserService keeps the user directory in sync with the identity provider.
type UserService struct {
	users database.UserStore
	now   Clock
}

func NewUserService(users database.UserStore) *UserService {
	return &UserService{users: users, now: time.Now}
}

// SyncUser upserts the caller's profile and search name.
func (s *UserService) SyncUser(ctx context.Context, id models.Identity) (*models.User, error) {
	if id.ID == "" {
		return nil, apperrors.Unauthorized("missing identity")
	}
	name := id.Name()
	u := &models.User{
		ID:          id.ID,
		Email:       id.Email,
		DisplayName: name,
		SearchName:  models.NormalizeSearchName(name),
		PhotoURL:    id.PhotoURL,
		LastSeen:    s.now(),
	}
	if err := s.users.UpsertUser(ctx, u); err != nil {
		return nil, storeError(err, "user", id.ID)
	}
	logger.GetLogger().Debugw("User synced", "userID", id.ID, "email", logger.MaskEmail(id.Email))
	return u, nil
}

func (s *UserService) SetPushToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.Validation("token is required", "")
	}
	if err := s.users.SetPushToken(ctx, userID, token); err != nil {
		return storeError(err, "user", userID)
	}
	return nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", userID)
	}
	return u, nil
}
