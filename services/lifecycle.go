package services

import (
	"context"

	"go.uber.org/zap"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/models"
)

// LifecycleService handles leaving and deleting groups. Deleting a group also
// deletes its invitations and activity; expenses and members go with the group.
type LifecycleService struct {
	groups   database.GroupStore
	activity database.ActivityStore
	log      *zap.SugaredLogger
}

func NewLifecycleService(groups database.GroupStore, activity database.ActivityStore) *LifecycleService {
	return &LifecycleService{groups: groups, activity: activity, log: logger.GetLogger()}
}

// LeaveGroup removes userID from the group. When the admin leaves, the whole
// group is deleted. It reports whether the group was deleted.
func (s *LifecycleService) LeaveGroup(ctx context.Context, groupID, userID string, caller models.Identity) (bool, error) {
	if caller.ID != userID {
		return false, apperrors.Forbidden("you can only leave a group yourself")
	}

	g, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return false, storeError(err, "group", groupID)
	}
	if g.IsAdmin(userID) {
		if err := s.groups.DeleteGroup(ctx, groupID); err != nil {
			return false, storeError(err, "group", groupID)
		}
		s.log.Infow("Admin left, group deleted", "groupID", groupID, "userID", userID)
		return true, nil
	}

	var name string
	_, err = s.groups.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		m := g.Member(userID)
		if m == nil {
			return apperrors.NotFound("member", userID)
		}
		name = m.Name
		g.RemoveMember(userID)
		return nil
	})
	if err != nil {
		return false, storeError(err, "group", groupID)
	}

	s.log.Infow("Member left group", "groupID", groupID, "userID", userID)
	recordActivity(ctx, s.activity, &models.Activity{
		GroupID: groupID, ActorID: userID, MemberID: userID, Type: models.ActivityMemberLeft,
		Description: name + " salió del grupo",
	})
	return false, nil
}

// DeleteGroup hard-deletes the group. Only the admin may do it.
func (s *LifecycleService) DeleteGroup(ctx context.Context, groupID string, requester models.Identity) error {
	g, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return storeError(err, "group", groupID)
	}
	if err := requireAdmin(g, requester.ID); err != nil {
		return err
	}
	if err := s.groups.DeleteGroup(ctx, groupID); err != nil {
		return storeError(err, "group", groupID)
	}
	s.log.Infow("Group deleted", "groupID", groupID, "requesterID", requester.ID)
	return nil
}
