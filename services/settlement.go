package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/models"
)

// Transition triggers, used for metrics and activity.
const (
	triggerUpload = "upload"
	triggerVerify = "verify"
	triggerManual = "manual"
)

// SettlementService owns the per-member payment state machine:
//
//	pending          --upload-->        pending_approval
//	pending_approval --upload-->        pending_approval (proof replaced)
//	pending_approval --approve-->       paid
//	pending_approval --reject-->        pending
//	pending          --manual on-->     paid
//	paid             --manual off-->    pending
//
// Admin checks run inside the store mutator, against the state being written.
type SettlementService struct {
	groups   database.GroupStore
	activity database.ActivityStore
	notifier Notifier
	now      Clock
	log      *zap.SugaredLogger
}

func NewSettlementService(groups database.GroupStore, activity database.ActivityStore, notifier Notifier) *SettlementService {
	return &SettlementService{
		groups:   groups,
		activity: activity,
		notifier: notifier,
		now:      time.Now,
		log:      logger.GetLogger(),
	}
}

func requireAdmin(g *models.Group, callerID string) error {
	if !g.IsAdmin(callerID) {
		return apperrors.Forbidden("only the group admin can do this")
	}
	return nil
}

func findMember(g *models.Group, memberID string) (*models.GroupMember, error) {
	m := g.Member(memberID)
	if m == nil {
		return nil, apperrors.NotFound("member", memberID)
	}
	return m, nil
}

func (s *SettlementService) recordTransition(ctx context.Context, groupID, actorID, memberID, from, to, trigger, activityType, description string) {
	settlementTransitions.WithLabelValues(from, to, trigger).Inc()
	s.log.Infow("Member status changed", "groupID", groupID, "memberID", memberID, "from", from, "to", to, "trigger", trigger, "actorID", actorID)
	recordActivity(ctx, s.activity, &models.Activity{
		GroupID: groupID, ActorID: actorID, MemberID: memberID, Type: activityType, Description: description,
	})
}

// UploadProof attaches a proof of payment and puts the member up for approval.
// The member may upload for themselves; the admin may upload on their behalf.
func (s *SettlementService) UploadProof(ctx context.Context, groupID, memberID, proofURL string, caller models.Identity) (*models.Group, error) {
	proofURL = strings.TrimSpace(proofURL)
	if proofURL == "" {
		return nil, apperrors.Validation("proofUrl is required", "")
	}

	var from, name string
	now := s.now()
	g, err := s.groups.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		m, err := findMember(g, memberID)
		if err != nil {
			return err
		}
		if caller.ID != memberID && !g.IsAdmin(caller.ID) {
			return apperrors.Forbidden("you can only upload your own proof")
		}
		if m.Status == models.MemberStatusPaid {
			return apperrors.InvalidTransition(m.Status, models.MemberStatusPendingApproval)
		}
		from, name = m.Status, m.Name
		m.Status = models.MemberStatusPendingApproval
		m.PaidAt = nil
		m.ReceiptURL = proofURL
		m.SubmittedAt = &now
		return nil
	})
	if err != nil {
		return nil, storeError(err, "group", groupID)
	}

	s.recordTransition(ctx, groupID, caller.ID, memberID, from, models.MemberStatusPendingApproval, triggerUpload,
		models.ActivityProofSubmitted, name+" subió un comprobante")
	if s.notifier != nil {
		s.notifier.NotifyProofSubmitted(ctx, g, memberID)
	}
	return g, nil
}

// VerifyProof approves or rejects a submitted proof. A rejection clears the
// proof so the member can upload a new one.
func (s *SettlementService) VerifyProof(ctx context.Context, groupID, memberID string, approved bool, caller models.Identity) (*models.Group, error) {
	to := models.MemberStatusPending
	if approved {
		to = models.MemberStatusPaid
	}

	var name string
	now := s.now()
	g, err := s.groups.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		if err := requireAdmin(g, caller.ID); err != nil {
			return err
		}
		m, err := findMember(g, memberID)
		if err != nil {
			return err
		}
		if m.Status != models.MemberStatusPendingApproval {
			return apperrors.InvalidTransition(m.Status, to)
		}
		name = m.Name
		if approved {
			m.MarkPaid(now)
			return nil
		}
		m.MarkPending()
		m.ReceiptURL = ""
		m.SubmittedAt = nil
		return nil
	})
	if err != nil {
		return nil, storeError(err, "group", groupID)
	}

	activityType, description := models.ActivityProofApproved, "Se aprobó el pago de "+name
	if !approved {
		activityType, description = models.ActivityProofRejected, "Se rechazó el comprobante de "+name
	}
	s.recordTransition(ctx, groupID, caller.ID, memberID, models.MemberStatusPendingApproval, to, triggerVerify, activityType, description)
	return g, nil
}

// ToggleManual lets the admin mark a member paid or unpaid without a proof.
// Members awaiting approval must be verified instead. Toggling to the current
// state is a no-op.
func (s *SettlementService) ToggleManual(ctx context.Context, groupID, memberID string, isPaid bool, caller models.Identity) (*models.Group, error) {
	var from, name string
	now := s.now()
	g, err := s.groups.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		if err := requireAdmin(g, caller.ID); err != nil {
			return err
		}
		m, err := findMember(g, memberID)
		if err != nil {
			return err
		}
		from, name = m.Status, m.Name
		// An admin override also settles a proof still awaiting review; a
		// submitted receipt is kept when marking paid and dropped otherwise.
		switch {
		case isPaid && m.Status == models.MemberStatusPaid,
			!isPaid && m.Status == models.MemberStatusPending:
			return database.ErrSkipWrite
		case isPaid:
			m.MarkPaid(now)
		default:
			m.MarkPending()
			m.ReceiptURL = ""
			m.SubmittedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "group", groupID)
	}

	to := g.Member(memberID).Status
	if from != to {
		s.recordTransition(ctx, groupID, caller.ID, memberID, from, to, triggerManual,
			models.ActivityPaymentToggled, name+" quedó como "+to)
	}
	return g, nil
}

// UploadConsolidatedReceipt stores the admin's proof of paying the vendor and
// closes the group.
func (s *SettlementService) UploadConsolidatedReceipt(ctx context.Context, groupID, url string, caller models.Identity) (*models.Group, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, apperrors.Validation("receipt url is required", "")
	}
	g, err := s.groups.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		if err := requireAdmin(g, caller.ID); err != nil {
			return err
		}
		g.ExpenseReceiptURL = url
		g.Status = models.GroupStatusCompleted
		return nil
	})
	if err != nil {
		return nil, storeError(err, "group", groupID)
	}

	s.log.Infow("Consolidated receipt uploaded", "groupID", groupID, "actorID", caller.ID)
	recordActivity(ctx, s.activity, &models.Activity{
		GroupID: groupID, ActorID: caller.ID, Type: models.ActivityReceiptUploaded,
		Description: "Se subió el comprobante final",
	})
	return g, nil
}
