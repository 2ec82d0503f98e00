package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/models"
)

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, models.Deadline24h)

	require.Len(t, g.Members, 1)
	assert.Equal(t, "ana", g.Members[0].ID)
	assert.Equal(t, models.MemberStatusPaid, g.Members[0].Status)
	assert.NotNil(t, g.Members[0].PaidAt)
	assert.Equal(t, []string{"ana"}, []string(g.MemberIDs))
	require.NotNil(t, g.DeadlineDate)
	assert.Equal(t, f.now.Add(24*time.Hour), *g.DeadlineDate)
	assert.True(t, g.IsAdmin("ana"))

	stored, err := f.store.GetGroup(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asado", stored.Name)
}

func TestCreateGroupValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateGroupInput
	}{
		{"missing alias", CreateGroupInput{Name: "Asado", PayerName: "Ana", OwnerUID: "ana"}},
		{"blank name", CreateGroupInput{Name: "  ", PayerName: "Ana", Alias: "a", OwnerUID: "ana"}},
		{"negative amount", CreateGroupInput{Name: "Asado", PayerName: "Ana", Alias: "a", Amount: decimal.NewFromInt(-1)}},
		{"bad deadline", CreateGroupInput{Name: "Asado", PayerName: "Ana", Alias: "a", Deadline: models.DeadlineSpec{Kind: "3w"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.membership.CreateGroup(ctx, tt.in)
			requireAppError(t, err, apperrors.ValidationError)
		})
	}
}

func TestCreateGroupAnonymousPayer(t *testing.T) {
	f := newFixture(t)
	g, err := f.membership.CreateGroup(context.Background(), CreateGroupInput{Name: "Regalo", PayerName: "Ana", Alias: "ana.mp"})
	require.NoError(t, err)
	assert.Contains(t, g.PayerID, "payer_")
	assert.Equal(t, g.PayerID, g.Members[0].ID)
	assert.Nil(t, g.DeadlineDate)
}

func TestCreateGroupInvitesRecycledMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.membership.CreateGroup(ctx, CreateGroupInput{
		Name: "Asado II", PayerName: "Ana", Alias: "ana.mp", OwnerUID: "ana",
		RecycleMembers: []models.MemberRef{{ID: "bob", Name: "Bob"}, {ID: "ana", Name: "Ana"}, {ID: "cata", Name: "Cata"}},
	})
	require.NoError(t, err)

	pending, err := f.membership.ListPendingInvitationsForGroup(ctx, g.ID, "ana")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Len(t, f.notifier.invitations, 2)
	assert.Len(t, g.Members, 1)
}

func TestInviteDuplicatePending(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	ctx := context.Background()

	inv, err := f.membership.Invite(ctx, g.ID, "bob", ana)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, "Asado", inv.GroupName)
	assert.Equal(t, "Ana", inv.FromName)

	_, err = f.membership.Invite(ctx, g.ID, "bob", ana)
	requireAppError(t, err, apperrors.DuplicatePendingError)

	n, err := f.membership.CountPendingForGroup(ctx, g.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInviteConcurrentKeepsSinglePending(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	ctx := context.Background()

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		duplicate int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.membership.Invite(ctx, g.ID, "bob", ana)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperrors.Is(err, apperrors.DuplicatePendingError):
				duplicate++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, callers-1, duplicate)
	n, err := f.membership.CountPendingForGroup(ctx, g.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInviteErrors(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	ctx := context.Background()
	f.join(t, g.ID, bob)

	_, err := f.membership.Invite(ctx, g.ID, "bob", ana)
	requireAppError(t, err, apperrors.AlreadyMemberError)

	_, err = f.membership.Invite(ctx, g.ID, "dani", cata)
	requireAppError(t, err, apperrors.ForbiddenError)

	_, err = f.membership.Invite(ctx, "missing", "dani", ana)
	requireAppError(t, err, apperrors.NotFoundError)

	_, err = f.membership.Invite(ctx, g.ID, " ", ana)
	requireAppError(t, err, apperrors.ValidationError)

	// Regular members may invite too.
	_, err = f.membership.Invite(ctx, g.ID, "dani", bob)
	assert.NoError(t, err)
}

func TestRespondToInvitationAccept(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	ctx := context.Background()

	inv, err := f.membership.Invite(ctx, g.ID, "bob", ana)
	require.NoError(t, err)

	groupID, err := f.membership.RespondToInvitation(ctx, inv.ID, true, bob)
	require.NoError(t, err)
	assert.Equal(t, g.ID, groupID)

	stored, err := f.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Members, 2)
	assert.ElementsMatch(t, []string{"ana", "bob"}, []string(stored.MemberIDs))
	assert.Equal(t, models.MemberStatusPending, stored.Member("bob").Status)

	got, err := f.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, got.Status)
	require.NotNil(t, got.RespondedAt)

	// Answering the same way again is harmless; changing the answer is not.
	_, err = f.membership.RespondToInvitation(ctx, inv.ID, true, bob)
	assert.NoError(t, err)
	_, err = f.membership.RespondToInvitation(ctx, inv.ID, false, bob)
	requireAppError(t, err, apperrors.InvalidTransitionError)

	stored, err = f.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Members, 2)
}

func TestRespondToInvitationReject(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	ctx := context.Background()

	inv, err := f.membership.Invite(ctx, g.ID, "bob", ana)
	require.NoError(t, err)

	_, err = f.membership.RespondToInvitation(ctx, inv.ID, true, cata)
	requireAppError(t, err, apperrors.ForbiddenError)

	_, err = f.membership.RespondToInvitation(ctx, inv.ID, false, bob)
	require.NoError(t, err)

	stored, err := f.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Members, 1)

	// A rejected invitation does not block a new one.
	_, err = f.membership.Invite(ctx, g.ID, "bob", ana)
	assert.NoError(t, err)
}

// answerFirst lets another response land just before the wrapped store
// records this one.
type answerFirst struct {
	database.Store
	once   sync.Once
	answer func()
}

func (s *answerFirst) UpdateInvitationStatus(ctx context.Context, id, status string, at time.Time) error {
	s.once.Do(s.answer)
	return s.Store.UpdateInvitationStatus(ctx, id, status, at)
}

func TestRespondToInvitationLosesToConcurrentReject(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	ctx := context.Background()

	inv, err := f.membership.Invite(ctx, g.ID, "bob", ana)
	require.NoError(t, err)

	racing := NewMembershipService(&answerFirst{Store: f.store, answer: func() {
		require.NoError(t, f.store.UpdateInvitationStatus(ctx, inv.ID, models.InvitationRejected, f.now))
	}}, nil, false)

	_, err = racing.RespondToInvitation(ctx, inv.ID, true, bob)
	requireAppError(t, err, apperrors.InvalidTransitionError)

	stored, err := f.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationRejected, stored.Status)

	group, err := f.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, group.HasMember("bob"))
	assert.NotContains(t, []string(group.MemberIDs), "bob")
}

func TestRespondToInvitationConcurrentAnswersStayConsistent(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		g := f.createGroup(t, "")
		ctx := context.Background()

		inv, err := f.membership.Invite(ctx, g.ID, "bob", ana)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, accept := range []bool{true, false} {
			wg.Add(1)
			go func(accept bool) {
				defer wg.Done()
				_, _ = f.membership.RespondToInvitation(ctx, inv.ID, accept, bob)
			}(accept)
		}
		wg.Wait()

		stored, err := f.store.GetInvitation(ctx, inv.ID)
		require.NoError(t, err)
		group, err := f.store.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.Status == models.InvitationAccepted, group.HasMember("bob"),
			"invitation %s but membership %v", stored.Status, group.HasMember("bob"))
	}
}

func TestRespondToInvitationGroupGone(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	ctx := context.Background()

	inv, err := f.membership.Invite(ctx, g.ID, "bob", ana)
	require.NoError(t, err)
	require.NoError(t, f.lifecycle.DeleteGroup(ctx, g.ID, ana))

	_, err = f.membership.RespondToInvitation(ctx, inv.ID, true, bob)
	requireAppError(t, err, apperrors.NotFoundError)

	pending, err := f.membership.ListPendingInvitations(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCancelInvitation(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	ctx := context.Background()

	inv, err := f.membership.Invite(ctx, g.ID, "bob", ana)
	require.NoError(t, err)

	requireAppError(t, f.membership.CancelInvitation(ctx, inv.ID, bob), apperrors.ForbiddenError)
	require.NoError(t, f.membership.CancelInvitation(ctx, inv.ID, ana))

	pending, err := f.membership.ListPendingInvitations(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetGroupRequiresMembership(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, models.Deadline24h)
	ctx := context.Background()

	_, err := f.membership.GetGroup(ctx, g.ID, "cata")
	requireAppError(t, err, apperrors.ForbiddenError)

	_, err = f.membership.GetGroup(ctx, "missing", "ana")
	requireAppError(t, err, apperrors.NotFoundError)

	resp, err := f.membership.GetGroup(ctx, g.ID, "ana")
	require.NoError(t, err)
	assert.True(t, resp.IsAdmin)
	assert.Equal(t, "12000", resp.Summary.Total.String())
	assert.Equal(t, "24h0m0s", resp.Summary.TimeRemaining)
}

func TestListGroupsForUserFlagsDebtors(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, models.Deadline24h)
	f.join(t, g.ID, bob)
	ctx := context.Background()

	items, err := f.membership.ListGroupsForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].IsDebtor)
	assert.Equal(t, models.MemberStatusPending, items[0].MyStatus)
	assert.Equal(t, "6000", items[0].Share.String())

	f.membership.now = func() time.Time { return f.now.Add(25 * time.Hour) }
	items, err = f.membership.ListGroupsForUser(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, items[0].IsDebtor)

	items, err = f.membership.ListGroupsForUser(ctx, "ana")
	require.NoError(t, err)
	assert.False(t, items[0].IsDebtor)
	assert.True(t, items[0].IsAdmin)
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := NewUserService(f.store)

	for _, id := range []models.Identity{ana, bob, {ID: "andres", DisplayName: "Andrés"}} {
		_, err := users.SyncUser(ctx, id)
		require.NoError(t, err)
	}

	found, err := f.membership.SearchUsers(ctx, " AN")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "ana", found[0].ID)

	found, err = f.membership.SearchUsers(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestListActivity(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "")
	f.join(t, g.ID, bob)
	ctx := context.Background()

	list, err := f.membership.ListActivity(ctx, g.ID, "bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	types := []string{list[0].Type, list[1].Type}
	assert.ElementsMatch(t, []string{models.ActivityGroupCreated, models.ActivityMemberJoined}, types)

	_, err = f.membership.ListActivity(ctx, g.ID, "cata", 10, 0)
	requireAppError(t, err, apperrors.ForbiddenError)
}
