package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/models"
)

type ReconcileOutcome string

const (
	OutcomeApplied            ReconcileOutcome = "applied"
	OutcomeAlreadyPaid        ReconcileOutcome = "already_paid"
	OutcomeIgnoredStatus      ReconcileOutcome = "ignored_status"
	OutcomeMalformedReference ReconcileOutcome = "malformed_reference"
	OutcomeBillNotFound       ReconcileOutcome = "bill_not_found"
	OutcomeFriendNotFound     ReconcileOutcome = "friend_not_found"
	OutcomeIgnoredTopic       ReconcileOutcome = "ignored_topic"
	OutcomeDuplicate          ReconcileOutcome = "duplicate_delivery"
)

const (
	paymentApproved = "approved"
	deliveryTTL     = 72 * time.Hour
	paymentTopic    = "payment"
)

var errFriendMissing = errors.New("friend not in bill")

// ReconciliationService applies gateway payment confirmations to bills. Only
// upstream failures are returned as errors; every other outcome is logged and
// acknowledged so the gateway does not retry.
type ReconciliationService struct {
	bills      database.BillStore
	gateway    PaymentGateway
	deliveries database.DeliveryLog
	now        Clock
	log        *zap.SugaredLogger
}

func NewReconciliationService(bills database.BillStore, gateway PaymentGateway, deliveries database.DeliveryLog) *ReconciliationService {
	return &ReconciliationService{
		bills:      bills,
		gateway:    gateway,
		deliveries: deliveries,
		now:        time.Now,
		log:        logger.GetLogger(),
	}
}

// ParseExternalReference splits "{billId}_{friendId}" on the first underscore.
func ParseExternalReference(ref string) (billID, friendID string, ok bool) {
	billID, friendID, found := strings.Cut(strings.TrimSpace(ref), "_")
	if !found || billID == "" || friendID == "" {
		return "", "", false
	}
	return billID, friendID, true
}

// Reconcile marks the referenced friend paid when the payment is approved.
// Re-applying an approved payment is a no-op.
func (s *ReconciliationService) Reconcile(ctx context.Context, externalReference, status string) (ReconcileOutcome, error) {
	outcome, err := s.reconcile(ctx, externalReference, status)
	webhookOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (s *ReconciliationService) reconcile(ctx context.Context, externalReference, status string) (ReconcileOutcome, error) {
	billID, friendID, ok := ParseExternalReference(externalReference)
	if !ok {
		s.log.Warnw("Ignoring payment with malformed reference", "reference", externalReference)
		return OutcomeMalformedReference, nil
	}
	if status != paymentApproved {
		s.log.Infow("Ignoring payment that is not approved", "billID", billID, "friendID", friendID, "status", status)
		return OutcomeIgnoredStatus, nil
	}

	outcome := OutcomeApplied
	now := s.now()
	_, err := s.bills.UpdateBill(ctx, billID, func(b *models.Bill) error {
		f := b.Friend(friendID)
		if f == nil {
			return errFriendMissing
		}
		if f.Status == models.FriendStatusPaid {
			outcome = OutcomeAlreadyPaid
			return database.ErrSkipWrite
		}
		outcome = OutcomeApplied
		f.Status = models.FriendStatusPaid
		f.PaidAt = &now
		b.RefreshStatus()
		return nil
	})
	switch {
	case errors.Is(err, database.ErrNotFound):
		s.log.Warnw("Payment references an unknown bill", "billID", billID, "friendID", friendID)
		return OutcomeBillNotFound, nil
	case errors.Is(err, errFriendMissing):
		s.log.Warnw("Payment references an unknown friend", "billID", billID, "friendID", friendID)
		return OutcomeFriendNotFound, nil
	case err != nil:
		s.log.Errorw("Failed to apply payment", "billID", billID, "friendID", friendID, "error", err)
		return "", apperrors.Upstream(err, "failed to apply payment")
	}

	s.log.Infow("Payment reconciled", "billID", billID, "friendID", friendID, "outcome", outcome)
	return outcome, nil
}

// HandleNotification processes a gateway webhook: it looks the payment up and
// reconciles it. Deliveries already processed are dropped.
func (s *ReconciliationService) HandleNotification(ctx context.Context, topic, paymentID string) (ReconcileOutcome, error) {
	if topic != paymentTopic || paymentID == "" {
		webhookOutcomes.WithLabelValues(string(OutcomeIgnoredTopic)).Inc()
		return OutcomeIgnoredTopic, nil
	}
	if s.gateway == nil {
		return "", apperrors.Upstream(errors.New("payment gateway not configured"), "payments are not enabled")
	}

	if s.deliveries != nil {
		seen, err := s.deliveries.Seen(ctx, paymentID)
		if err != nil {
			s.log.Warnw("Delivery log unavailable, processing anyway", "paymentID", paymentID, "error", err)
		} else if seen {
			webhookOutcomes.WithLabelValues(string(OutcomeDuplicate)).Inc()
			return OutcomeDuplicate, nil
		}
	}

	info, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		s.log.Errorw("Failed to fetch payment", "paymentID", paymentID, "error", err)
		return "", apperrors.Upstream(err, "failed to fetch payment")
	}

	outcome, err := s.Reconcile(ctx, info.ExternalReference, info.Status)
	if err != nil {
		return "", err
	}
	// A pending payment is notified again when it settles, so only final
	// outcomes are remembered.
	if outcome != OutcomeIgnoredStatus && s.deliveries != nil {
		if err := s.deliveries.Mark(ctx, paymentID, deliveryTTL); err != nil {
			s.log.Warnw("Failed to record delivery", "paymentID", paymentID, "error", err)
		}
	}
	return outcome, nil
}
