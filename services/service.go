// Package services implements the settlement core: membership and invitations,
// the per-member payment state machine, the expense ledger, payment
// reconciliation and group lifecycle. Every operation reads and writes through
// the database store interfaces.
package services

import (
	"context"
	"errors"
	"time"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/models"
)

// Clock returns the current time. Tests replace it to drive deadlines.
type Clock func() time.Time

// storeError translates store sentinels into the caller-facing taxonomy.
// AppErrors raised inside mutators pass through untouched.
func storeError(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, database.ErrNotFound):
		return apperrors.NotFound(entity, id)
	case errors.Is(err, database.ErrConflict):
		return apperrors.Upstream(err, "the "+entity+" changed concurrently, please retry")
	default:
		// Logged once where the request fails.
		return apperrors.Upstream(err, "failed to access "+entity)
	}
}

func recordActivity(ctx context.Context, store database.ActivityStore, a *models.Activity) {
	if store == nil {
		return
	}
	if err := store.RecordActivity(ctx, a); err != nil {
		logger.GetLogger().Warnw("Failed to record activity", "groupID", a.GroupID, "type", a.Type, "error", err)
	}
}

// requireMember loads the group and checks that userID may read it.
func requireMember(ctx context.Context, groups database.GroupStore, groupID, userID string) (*models.Group, error) {
	g, err := groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storeError(err, "group", groupID)
	}
	if !g.HasMember(userID) && !g.IsAdmin(userID) {
		return nil, apperrors.Forbidden("you are not a member of this group")
	}
	return g, nil
}
