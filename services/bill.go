package services

import (
	"context"
	"fmt"
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

// BillService manages one-off bills and their checkout links.
type BillService struct {
	bills    database.BillStore
	groups   database.GroupStore
	gateway  PaymentGateway
	appURL   string
	currency string
	now      Clock
	log      *zap.SugaredLogger
}

func NewBillService(bills database.BillStore, groups database.GroupStore, gateway PaymentGateway, appURL, currency string) *BillService {
	return &BillService{
		bills:    bills,
		groups:   groups,
		gateway:  gateway,
		appURL:   strings.TrimRight(appURL, "/"),
		currency: currency,
		now:      time.Now,
		log:      logger.GetLogger(),
	}
}

type CreateBillInput struct {
	Description  string
	Alias        string
	Amount       decimal.Decimal
	FriendsCount int
	GroupID      string
	// GroupMembers seeds the friend list from an existing group.
	GroupMembers []models.MemberRef
}

func (s *BillService) CreateBill(ctx context.Context, in CreateBillInput, caller models.Identity) (*models.Bill, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperrors.Validation("description is required", "")
	}
	if !in.Amount.IsPositive() {
		return nil, apperrors.Validation("amount must be greater than zero", in.Amount.String())
	}

	members := in.GroupMembers
	var groupID *string
	if in.GroupID != "" {
		g, err := requireMember(ctx, s.groups, in.GroupID, caller.ID)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			for _, m := range g.Members {
				members = append(members, models.MemberRef{ID: m.ID, Name: m.Name})
			}
		}
		groupID = &g.ID
	}

	count := in.FriendsCount
	if count <= 0 {
		count = len(members)
	}
	if count <= 0 {
		return nil, apperrors.Validation("at least one friend is required", "")
	}
	perPerson := in.Amount.DivRound(decimal.NewFromInt(int64(count)), 2)

	var friends []models.BillFriend
	if len(members) > 0 {
		for _, m := range members {
			friends = append(friends, models.BillFriend{
				ID: m.ID, Name: m.Name, Status: models.FriendStatusPending, Amount: perPerson,
			})
		}
	} else {
		for i := 0; i < count; i++ {
			friends = append(friends, models.BillFriend{
				ID: uuid.NewString(), Name: fmt.Sprintf("Amigo %d", i+1), Status: models.FriendStatusPending, Amount: perPerson,
			})
		}
	}

	b := &models.Bill{
		ID:              uuid.NewString(),
		Description:     description,
		Alias:           strings.TrimSpace(in.Alias),
		TotalAmount:     in.Amount,
		FriendsCount:    count,
		AmountPerPerson: perPerson,
		Friends:         friends,
		GroupID:         groupID,
		CreatedBy:       caller.ID,
		Status:          models.BillStatusActive,
	}
	if err := s.bills.CreateBill(ctx, b); err != nil {
		return nil, storeError(err, "bill", b.ID)
	}
	s.log.Infow("Bill created", "billID", b.ID, "friends", len(friends), "perPerson", perPerson.String())
	return b, nil
}

func (s *BillService) GetBill(ctx context.Context, billID string) (*models.Bill, error) {
	b, err := s.bills.GetBill(ctx, billID)
	if err != nil {
		return nil, storeError(err, "bill", billID)
	}
	return b, nil
}

// MarkFriendPaid records a friend's payment with an optional proof. Marking an
// already paid friend changes nothing.
func (s *BillService) MarkFriendPaid(ctx context.Context, billID, friendID, proofURL string) (*models.Bill, error) {
	now := s.now()
	b, err := s.bills.UpdateBill(ctx, billID, func(b *models.Bill) error {
		f := b.Friend(friendID)
		if f == nil {
			return apperrors.NotFound("friend", friendID)
		}
		if f.Status == models.FriendStatusPaid {
			return database.ErrSkipWrite
		}
		f.Status = models.FriendStatusPaid
		f.PaidAt = &now
		f.ProofURL = strings.TrimSpace(proofURL)
		b.RefreshStatus()
		return nil
	})
	if err != nil {
		return nil, storeError(err, "bill", billID)
	}
	return b, nil
}

// ExternalReference correlates a gateway payment with a bill friend.
func ExternalReference(billID, friendID string) string {
	return billID + "_" + friendID
}

// CreatePaymentLink creates a checkout for the friend's share and returns its URL.
func (s *BillService) CreatePaymentLink(ctx context.Context, billID, friendID string) (string, error) {
	if s.gateway == nil {
		return "", apperrors.Validation("online payments are not enabled", "")
	}
	b, err := s.bills.GetBill(ctx, billID)
	if err != nil {
		return "", storeError(err, "bill", billID)
	}
	f := b.Friend(friendID)
	if f == nil {
		return "", apperrors.NotFound("friend", friendID)
	}
	if f.Status == models.FriendStatusPaid {
		return "", apperrors.Validation("this share is already paid", "")
	}

	back := fmt.Sprintf("%s/bill/%s?status=", s.appURL, b.ID)
	url, err := s.gateway.CreatePreference(ctx, PaymentPreference{
		ItemID:            b.ID,
		Title:             b.Description,
		Amount:            f.Amount,
		Currency:          s.currency,
		ExternalReference: ExternalReference(b.ID, f.ID),
		SuccessURL:        back + "success",
		FailureURL:        back + "failure",
		PendingURL:        back + "pending",
	})
	if err != nil {
		s.log.Errorw("Failed to create payment preference", "billID", billID, "friendID", friendID, "error", err)
		return "", apperrors.Upstream(err, "failed to create payment link")
	}
	return url, nil
}
