package models

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroup() *Group {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Group{
		ID:        "g1",
		Name:      "Asado",
		PayerName: "Ana",
		Alias:     "ana.mp",
		Amount:    decimal.NewFromInt(9000),
		CreatedBy: "ana",
		PayerID:   "ana",
	}
	g.AddMember(GroupMember{ID: "ana", Name: "Ana", Status: MemberStatusPaid, PaidAt: &now, JoinedAt: now})
	g.AddMember(GroupMember{ID: "bob", Name: "Bob", Status: MemberStatusPending, JoinedAt: now})
	g.AddMember(GroupMember{ID: "cata", Name: "Cata", Status: MemberStatusPending, JoinedAt: now})
	g.Normalize()
	return g
}

func sortedIDs(g *Group) ([]string, []string) {
	ids := append([]string(nil), g.MemberIDs...)
	var fromMembers []string
	for _, m := range g.Members {
		fromMembers = append(fromMembers, m.ID)
	}
	sort.Strings(ids)
	sort.Strings(fromMembers)
	return ids, fromMembers
}

func TestMemberIDsFollowMembers(t *testing.T) {
	g := newTestGroup()

	ids, fromMembers := sortedIDs(g)
	assert.Equal(t, fromMembers, ids)

	assert.False(t, g.AddMember(GroupMember{ID: "bob", Name: "Bob again"}))
	assert.Len(t, g.Members, 3)

	assert.True(t, g.RemoveMember("bob"))
	ids, fromMembers = sortedIDs(g)
	assert.Equal(t, fromMembers, ids)
	assert.NotContains(t, []string(g.MemberIDs), "bob")
	assert.False(t, g.RemoveMember("bob"))
}

func TestNormalizeRepairsLegacyMembers(t *testing.T) {
	paid := time.Now()
	g := &Group{
		ID: "legacy",
		Members: []GroupMember{
			{ID: "a", Name: " Ana ", Status: "", PaidAt: &paid},
			{ID: "b", Name: "Bob", Status: MemberStatusPaid, PaidAt: &paid},
		},
	}

	g.Normalize()

	assert.Equal(t, GroupStatusActive, g.Status)
	assert.Equal(t, MemberStatusPending, g.Members[0].Status)
	assert.Nil(t, g.Members[0].PaidAt)
	assert.Equal(t, "Ana", g.Members[0].Name)
	assert.NotNil(t, g.Members[1].PaidAt)
	assert.Equal(t, []string{"a", "b"}, []string(g.MemberIDs))
	assert.NotNil(t, g.Expenses)
}

func TestCloneIsDeep(t *testing.T) {
	g := newTestGroup()
	c := g.Clone()

	c.Member("bob").MarkPaid(time.Now())
	c.AddMember(GroupMember{ID: "dani", Name: "Dani"})

	assert.Equal(t, MemberStatusPending, g.Member("bob").Status)
	assert.Nil(t, g.Member("bob").PaidAt)
	assert.Len(t, g.Members, 3)
	assert.Len(t, g.MemberIDs, 3)
}

func TestAdminFallsBackToPayerID(t *testing.T) {
	g := &Group{PayerID: "legacy-payer"}
	assert.Equal(t, "legacy-payer", g.AdminID())
	assert.True(t, g.IsAdmin("legacy-payer"))
	assert.False(t, g.IsAdmin(""))

	g.CreatedBy = "owner"
	assert.Equal(t, "owner", g.AdminID())
	assert.True(t, g.IsAdmin("owner"))
	assert.True(t, g.IsAdmin("legacy-payer"))
}

func TestTotalPrefersLedger(t *testing.T) {
	g := newTestGroup()
	assert.True(t, g.TotalAmount().Equal(decimal.NewFromInt(9000)))
	assert.True(t, g.ShareAmount().Equal(decimal.NewFromInt(3000)))

	g.Expenses = []Expense{
		{ID: "e1", Description: "Cerveza", Amount: decimal.NewFromInt(5000)},
		{ID: "e2", Description: "Hielo", Amount: decimal.NewFromInt(1000)},
	}
	assert.True(t, g.TotalAmount().Equal(decimal.NewFromInt(6000)))
	assert.True(t, g.ShareAmount().Equal(decimal.NewFromInt(2000)))
}

func TestIsCompleted(t *testing.T) {
	g := newTestGroup()
	assert.False(t, g.IsCompleted(false))

	now := time.Now()
	g.Member("bob").MarkPaid(now)
	g.Member("cata").Status = MemberStatusPendingApproval
	assert.False(t, g.IsCompleted(false))

	g.Member("cata").MarkPaid(now)
	assert.True(t, g.IsCompleted(false))
	assert.False(t, g.IsCompleted(true))

	g.ExpenseReceiptURL = "https://cdn.example.com/receipt.png"
	assert.True(t, g.IsCompleted(true))
}

func TestDebtorsOnlyAfterDeadline(t *testing.T) {
	g := newTestGroup()
	deadline := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	g.DeadlineDate = &deadline

	before := deadline.Add(-time.Minute)
	after := deadline.Add(time.Minute)

	assert.False(t, g.IsDebtor(*g.Member("bob"), before))
	assert.Empty(t, g.Debtors(before))

	assert.True(t, g.IsDebtor(*g.Member("bob"), after))
	assert.False(t, g.IsDebtor(*g.Member("ana"), after))
	require.Len(t, g.Debtors(after), 2)

	g.Member("bob").MarkPaid(after)
	assert.Len(t, g.Debtors(after), 1)
}

func TestNoDeadlineMeansNoDebtors(t *testing.T) {
	g := newTestGroup()
	assert.Empty(t, g.Debtors(time.Now().AddDate(10, 0, 0)))
}

func TestSummary(t *testing.T) {
	g := newTestGroup()
	deadline := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	g.DeadlineDate = &deadline
	g.Member("cata").Status = MemberStatusPendingApproval

	s := g.Summary(deadline.Add(-time.Hour), false)
	assert.Equal(t, 3, s.MemberCount)
	assert.Equal(t, 1, s.PaidCount)
	assert.Equal(t, 1, s.AwaitingApprovalCount)
	assert.Equal(t, 1, s.PendingCount)
	assert.True(t, s.Outstanding.Equal(decimal.NewFromInt(6000)))
	assert.False(t, s.Overdue)
	assert.Equal(t, "1h0m0s", s.TimeRemaining)
	assert.Empty(t, s.Debtors)

	s = g.Summary(deadline.Add(time.Hour), false)
	assert.True(t, s.Overdue)
	assert.Empty(t, s.TimeRemaining)
	assert.Len(t, s.Debtors, 2)
}

func TestMarkPaidAndPendingKeepPaidAtInvariant(t *testing.T) {
	m := GroupMember{ID: "bob", Status: MemberStatusPending}
	m.MarkPaid(time.Now())
	assert.Equal(t, MemberStatusPaid, m.Status)
	assert.NotNil(t, m.PaidAt)

	m.MarkPending()
	assert.Equal(t, MemberStatusPending, m.Status)
	assert.Nil(t, m.PaidAt)
}
