package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/models"
)

func init() {
	logger.IsTest = true
}

var (
	ana  = models.Identity{ID: "ana", DisplayName: "Ana", Email: "ana@example.com"}
	bob  = models.Identity{ID: "bob", DisplayName: "Bob", Email: "bob@example.com"}
	cata = models.Identity{ID: "cata", DisplayName: "Cata", Email: "cata@example.com"}
)

type recordingNotifier struct {
	mu          sync.Mutex
	invitations []*models.Invitation
	expenses    []*models.Expense
	proofs      []string
}

func (n *recordingNotifier) NotifyInvitation(_ context.Context, inv *models.Invitation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invitations = append(n.invitations, inv)
}

func (n *recordingNotifier) NotifyExpenseAdded(_ context.Context, _ *models.Group, e *models.Expense) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expenses = append(n.expenses, e)
}

func (n *recordingNotifier) NotifyProofSubmitted(_ context.Context, _ *models.Group, memberID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.proofs = append(n.proofs, memberID)
}

type fixture struct {
	store      *database.MemoryStore
	notifier   *recordingNotifier
	membership *MembershipService
	settlement *SettlementService
	ledger     *LedgerService
	lifecycle  *LifecycleService
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := database.NewMemoryStore(database.NewLocalFeed())
	notifier := &recordingNotifier{}
	now := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	f := &fixture{
		store:      store,
		notifier:   notifier,
		membership: NewMembershipService(store, notifier, false),
		settlement: NewSettlementService(store, store, notifier),
		ledger:     NewLedgerService(store, store, notifier),
		lifecycle:  NewLifecycleService(store, store),
		now:        now,
	}
	f.membership.now = clock
	f.settlement.now = clock
	f.ledger.now = clock
	return f
}

// createGroup builds the "Asado" group owned by ana.
func (f *fixture) createGroup(t *testing.T, deadline string) *models.Group {
	t.Helper()
	g, err := f.membership.CreateGroup(context.Background(), CreateGroupInput{
		Name:       "Asado",
		PayerName:  "Ana",
		Alias:      "ana.mp",
		Amount:     decimal.NewFromInt(12000),
		Deadline:   models.DeadlineSpec{Kind: deadline},
		OwnerUID:   ana.ID,
		OwnerEmail: ana.Email,
	})
	require.NoError(t, err)
	return g
}

// join invites the user and accepts on their behalf.
func (f *fixture) join(t *testing.T, groupID string, user models.Identity) {
	t.Helper()
	ctx := context.Background()
	inv, err := f.membership.Invite(ctx, groupID, user.ID, ana)
	require.NoError(t, err)
	_, err = f.membership.RespondToInvitation(ctx, inv.ID, true, user)
	require.NoError(t, err)
}

func (f *fixture) member(t *testing.T, groupID, memberID string) models.GroupMember {
	t.Helper()
	g, err := f.store.GetGroup(context.Background(), groupID)
	require.NoError(t, err)
	m := g.Member(memberID)
	require.NotNil(t, m, "member %s missing", memberID)
	return *m
}

func requireAppError(t *testing.T, err error, want apperrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, apperrors.TypeOf(err), "unexpected error: %v", err)
}

type fakeGateway struct {
	mu          sync.Mutex
	preferences []PaymentPreference
	payments    map[string]*PaymentInfo
	lookups     int
	err         error
}

func (g *fakeGateway) CreatePreference(_ context.Context, p PaymentPreference) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.preferences = append(g.preferences, p)
	return "https://checkout.example.com/" + p.ExternalReference, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.payments[id]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return p, nil
}
