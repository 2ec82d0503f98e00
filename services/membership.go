package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/models"
)

const searchLimit = 5

// MembershipService creates groups and runs the invitation flow.
type MembershipService struct {
	store          database.Store
	notifier       Notifier
	requireReceipt bool
	now            Clock
	log            *zap.SugaredLogger
}

func NewMembershipService(store database.Store, notifier Notifier, requireReceipt bool) *MembershipService {
	return &MembershipService{
		store:          store,
		notifier:       notifier,
		requireReceipt: requireReceipt,
		now:            time.Now,
		log:            logger.GetLogger(),
	}
}

type CreateGroupInput struct {
	Name        string
	PayerName   string
	Alias       string
	Description string
	Amount      decimal.Decimal
	Deadline    models.DeadlineSpec
	OwnerUID    string
	OwnerEmail  string
	// RecycleMembers are invited right after creation; failures are only logged.
	RecycleMembers []models.MemberRef
}

func (s *MembershipService) CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error) {
	name := strings.TrimSpace(in.Name)
	payerName := strings.TrimSpace(in.PayerName)
	alias := strings.TrimSpace(in.Alias)
	if name == "" || payerName == "" || alias == "" {
		return nil, apperrors.Validation("name, payerName and alias are required", "")
	}
	if in.Amount.IsNegative() {
		return nil, apperrors.Validation("amount cannot be negative", in.Amount.String())
	}

	now := s.now()
	deadline, err := in.Deadline.Resolve(now)
	if err != nil {
		return nil, apperrors.Validation("invalid deadline", err.Error())
	}

	payerID := in.OwnerUID
	if payerID == "" {
		payerID = "payer_" + uuid.NewString()
	}

	g := &models.Group{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		Alias:        alias,
		Amount:       in.Amount,
		PayerName:    payerName,
		PayerID:      payerID,
		CreatedBy:    in.OwnerUID,
		OwnerEmail:   in.OwnerEmail,
		DeadlineDate: deadline,
		Status:       models.GroupStatusActive,
	}
	creator := models.GroupMember{
		ID:       payerID,
		Name:     payerName,
		Email:    in.OwnerEmail,
		JoinedAt: now,
	}
	creator.MarkPaid(now)
	g.AddMember(creator)

	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, storeError(err, "group", g.ID)
	}
	s.log.Infow("Group created", "groupID", g.ID, "ownerID", payerID, "deadline", deadline)
	recordActivity(ctx, s.store, &models.Activity{
		GroupID: g.ID, ActorID: payerID, Type: models.ActivityGroupCreated,
		Description: payerName + " creó el grupo",
	})

	if len(in.RecycleMembers) > 0 {
		from := models.Identity{ID: payerID, DisplayName: payerName, Email: in.OwnerEmail}
		for _, m := range in.RecycleMembers {
			if m.ID == "" || m.ID == payerID {
				continue
			}
			if _, err := s.Invite(ctx, g.ID, m.ID, from); err != nil {
				s.log.Warnw("Failed to invite recycled member", "groupID", g.ID, "userID", m.ID, "error", err)
			}
		}
	}
	return g, nil
}

// Invite creates a pending invitation for a user who is not yet a member.
func (s *MembershipService) Invite(ctx context.Context, groupID, targetUserID string, from models.Identity) (*models.Invitation, error) {
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return nil, apperrors.Validation("userId is required", "")
	}

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storeError(err, "group", groupID)
	}
	if !g.HasMember(from.ID) && !g.IsAdmin(from.ID) {
		return nil, apperrors.Forbidden("only group members can invite")
	}
	if g.HasMember(targetUserID) {
		return nil, apperrors.AlreadyMember(targetUserID)
	}

	inv := &models.Invitation{
		ID:        uuid.NewString(),
		GroupID:   g.ID,
		GroupName: g.Name,
		ToUID:     targetUserID,
		FromUID:   from.ID,
		FromName:  from.Name(),
		Status:    models.InvitationPending,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, database.ErrDuplicatePending) {
			invitationEvents.WithLabelValues("duplicate").Inc()
			return nil, apperrors.DuplicatePending(groupID, targetUserID)
		}
		return nil, storeError(err, "group", groupID)
	}
	invitationEvents.WithLabelValues("created").Inc()
	s.log.Infow("Invitation created", "invitationID", inv.ID, "groupID", groupID, "toUID", targetUserID, "fromUID", from.ID)

	if s.notifier != nil {
		s.notifier.NotifyInvitation(ctx, inv)
	}
	return inv, nil
}

// RespondToInvitation accepts or rejects an invitation and returns the group id.
func (s *MembershipService) RespondToInvitation(ctx context.Context, inviteID string, accept bool, user models.Identity) (string, error) {
	inv, err := s.store.GetInvitation(ctx, inviteID)
	if err != nil {
		return "", storeError(err, "invitation", inviteID)
	}
	if inv.ToUID != user.ID {
		return "", apperrors.Forbidden("this invitation is addressed to another user")
	}

	target := models.InvitationRejected
	if accept {
		target = models.InvitationAccepted
	}
	if inv.Status != models.InvitationPending {
		if inv.Status == target {
			return inv.GroupID, nil
		}
		return "", apperrors.InvalidTransition(inv.Status, target)
	}

	now := s.now()
	added := false
	if accept {
		_, err := s.store.UpdateGroup(ctx, inv.GroupID, func(g *models.Group) error {
			added = g.AddMember(models.GroupMember{
				ID:       user.ID,
				Name:     user.Name(),
				Email:    user.Email,
				JoinedAt: now,
				Status:   models.MemberStatusPending,
			})
			if !added {
				return database.ErrSkipWrite
			}
			return nil
		})
		if errors.Is(err, database.ErrNotFound) {
			// The group was deleted after the invitation was sent.
			if delErr := s.store.DeleteInvitation(ctx, inv.ID); delErr != nil {
				s.log.Warnw("Failed to remove orphaned invitation", "invitationID", inv.ID, "error", delErr)
			}
			return "", apperrors.NotFound("group", inv.GroupID)
		}
		if err != nil {
			return "", storeError(err, "group", inv.GroupID)
		}
	}

	err = s.store.UpdateInvitationStatus(ctx, inv.ID, target, now)
	if errors.Is(err, database.ErrAlreadyAnswered) {
		// A concurrent response won. Undo the join unless it also accepted.
		current, getErr := s.store.GetInvitation(ctx, inv.ID)
		if getErr != nil {
			return "", storeError(getErr, "invitation", inv.ID)
		}
		if current.Status == target {
			return inv.GroupID, nil
		}
		if added {
			s.undoJoin(ctx, inv.GroupID, user.ID)
		}
		return "", apperrors.InvalidTransition(current.Status, target)
	}
	if err != nil {
		return "", storeError(err, "invitation", inv.ID)
	}
	if added {
		recordActivity(ctx, s.store, &models.Activity{
			GroupID: inv.GroupID, ActorID: user.ID, MemberID: user.ID, Type: models.ActivityMemberJoined,
			Description: user.Name() + " se unió al grupo",
		})
	}
	invitationEvents.WithLabelValues(target).Inc()
	s.log.Infow("Invitation answered", "invitationID", inv.ID, "groupID", inv.GroupID, "status", target)
	return inv.GroupID, nil
}

func (s *MembershipService) undoJoin(ctx context.Context, groupID, userID string) {
	_, err := s.store.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		if !g.RemoveMember(userID) {
			return database.ErrSkipWrite
		}
		return nil
	})
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.log.Errorw("Failed to undo join after a concurrent rejection", "groupID", groupID, "userID", userID, "error", err)
	}
}

// CancelInvitation deletes an unanswered invitation. Only its sender may do it.
func (s *MembershipService) CancelInvitation(ctx context.Context, inviteID string, requester models.Identity) error {
	inv, err := s.store.GetInvitation(ctx, inviteID)
	if err != nil {
		return storeError(err, "invitation", inviteID)
	}
	if inv.FromUID != requester.ID {
		return apperrors.Forbidden("only the sender can cancel an invitation")
	}
	if err := s.store.DeleteInvitation(ctx, inviteID); err != nil {
		return storeError(err, "invitation", inviteID)
	}
	invitationEvents.WithLabelValues("cancelled").Inc()
	return nil
}

// SearchUsers matches the normalized display name by prefix.
func (s *MembershipService) SearchUsers(ctx context.Context, term string) ([]models.UserResponse, error) {
	prefix := models.NormalizeSearchName(term)
	out := []models.UserResponse{}
	if prefix == "" {
		return out, nil
	}
	users, err := s.store.SearchUsers(ctx, prefix, searchLimit)
	if err != nil {
		return nil, storeError(err, "user", prefix)
	}
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	return out, nil
}

func (s *MembershipService) ListPendingInvitations(ctx context.Context, userID string) ([]*models.Invitation, error) {
	list, err := s.store.ListInvitations(ctx, models.InvitationFilter{ToUID: userID, Status: models.InvitationPending})
	if err != nil {
		return nil, storeError(err, "invitation", userID)
	}
	return nonNil(list), nil
}

func (s *MembershipService) ListPendingInvitationsForGroup(ctx context.Context, groupID, requesterID string) ([]*models.Invitation, error) {
	if _, err := requireMember(ctx, s.store, groupID, requesterID); err != nil {
		return nil, err
	}
	list, err := s.store.ListInvitations(ctx, models.InvitationFilter{GroupID: groupID, Status: models.InvitationPending})
	if err != nil {
		return nil, storeError(err, "invitation", groupID)
	}
	return nonNil(list), nil
}

func (s *MembershipService) CountPendingForGroup(ctx context.Context, groupID, requesterID string) (int64, error) {
	if _, err := requireMember(ctx, s.store, groupID, requesterID); err != nil {
		return 0, err
	}
	n, err := s.store.CountInvitations(ctx, models.InvitationFilter{GroupID: groupID, Status: models.InvitationPending})
	if err != nil {
		return 0, storeError(err, "invitation", groupID)
	}
	return n, nil
}

// ListGroupsForUser returns the caller's dashboard cards, newest first.
func (s *MembershipService) ListGroupsForUser(ctx context.Context, userID string) ([]models.GroupListItem, error) {
	groups, err := s.store.ListGroupsForMember(ctx, userID)
	if err != nil {
		return nil, storeError(err, "group", userID)
	}
	now := s.now()
	out := make([]models.GroupListItem, 0, len(groups))
	for _, g := range groups {
		item := models.GroupListItem{
			ID:        g.ID,
			Name:      g.Name,
			Alias:     g.Alias,
			Status:    g.Status,
			Total:     g.TotalAmount(),
			Share:     g.ShareAmount(),
			IsAdmin:   g.IsAdmin(userID),
			Members:   len(g.Members),
			Completed: g.IsCompleted(s.requireReceipt),
		}
		if m := g.Member(userID); m != nil {
			item.MyStatus = m.Status
			item.IsDebtor = g.IsDebtor(*m, now)
		}
		out = append(out, item)
	}
	return out, nil
}

// GetGroup returns the group with its derived summary. Only members may read it.
func (s *MembershipService) GetGroup(ctx context.Context, groupID, requesterID string) (*models.GroupResponse, error) {
	g, err := requireMember(ctx, s.store, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	return &models.GroupResponse{
		Group:   g,
		Summary: g.Summary(s.now(), s.requireReceipt),
		IsAdmin: g.IsAdmin(requesterID),
	}, nil
}

func (s *MembershipService) ListActivity(ctx context.Context, groupID, requesterID string, limit, offset int) ([]*models.Activity, error) {
	if _, err := requireMember(ctx, s.store, groupID, requesterID); err != nil {
		return nil, err
	}
	list, err := s.store.ListActivity(ctx, groupID, limit, offset)
	if err != nil {
		return nil, storeError(err, "activity", groupID)
	}
	return nonNil(list), nil
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
