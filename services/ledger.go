package services

import (
	"context"
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

// LedgerService appends expenses to a group.
type LedgerService struct {
	groups   database.GroupStore
	activity database.ActivityStore
	notifier Notifier
	now      Clock
	log      *zap.SugaredLogger
}

func NewLedgerService(groups database.GroupStore, activity database.ActivityStore, notifier Notifier) *LedgerService {
	return &LedgerService{
		groups:   groups,
		activity: activity,
		notifier: notifier,
		now:      time.Now,
		log:      logger.GetLogger(),
	}
}

// AddExpense appends an expense and increments the group amount atomically.
// payerID defaults to the caller.
func (s *LedgerService) AddExpense(ctx context.Context, groupID, description string, amount decimal.Decimal, payerID string, caller models.Identity) (*models.Expense, *models.Group, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, nil, apperrors.Validation("description is required", "")
	}
	if !amount.IsPositive() {
		return nil, nil, apperrors.Validation("amount must be greater than zero", amount.String())
	}

	g, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, storeError(err, "group", groupID)
	}
	if err := requireAdmin(g, caller.ID); err != nil {
		return nil, nil, err
	}
	if payerID == "" {
		payerID = caller.ID
	}
	if !g.HasMember(payerID) && !g.IsAdmin(payerID) {
		return nil, nil, apperrors.Validation("payer must be a group member", payerID)
	}

	e := &models.Expense{
		ID:          uuid.NewString(),
		Description: description,
		Amount:      amount.Round(2),
		PayerID:     payerID,
		CreatedAt:   s.now(),
	}
	updated, err := s.groups.AppendExpense(ctx, groupID, e)
	if err != nil {
		return nil, nil, storeError(err, "group", groupID)
	}

	expensesAdded.Inc()
	s.log.Infow("Expense added", "groupID", groupID, "expenseID", e.ID, "amount", e.Amount.String(), "payerID", payerID)
	recordActivity(ctx, s.activity, &models.Activity{
		GroupID: groupID, ActorID: caller.ID, Type: models.ActivityExpenseAdded,
		Description: description + " $" + e.Amount.StringFixed(2),
	})
	if s.notifier != nil {
		s.notifier.NotifyExpenseAdded(ctx, updated, e)
	}
	return e, updated, nil
}

func (s *LedgerService) ListExpenses(ctx context.Context, groupID, requesterID string) ([]models.Expense, error) {
	g, err := requireMember(ctx, s.groups, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	return nonNil(g.Expenses), nil
}
