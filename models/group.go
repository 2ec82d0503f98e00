package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	GroupStatusActive    = "active"
	GroupStatusCompleted = "completed"
)

// Group is the long-lived shared expense container. Members and Expenses are
// stored in their own tables but always travel with the group; MemberIDs is a
// derived index and is only ever rebuilt through SyncMemberIDs.
type Group struct {
	ID                string          `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string          `gorm:"not null;size:100" json:"name"`
	Description       string          `gorm:"size:500" json:"description,omitempty"`
	Alias             string          `gorm:"not null;size:100" json:"alias"`
	Amount            decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PayerName         string          `gorm:"not null;size:100" json:"payerName"`
	PayerID           string          `gorm:"size:128;index" json:"payerId"`
	CreatedBy         string          `gorm:"size:128;index" json:"createdBy,omitempty"`
	OwnerEmail        string          `gorm:"size:255" json:"ownerEmail,omitempty"`
	DeadlineDate      *time.Time      `json:"deadlineDate,omitempty"`
	Status            string          `gorm:"not null;size:20" json:"status"`
	ExpenseReceiptURL string          `json:"expenseReceiptUrl,omitempty"`
	MemberIDs         pq.StringArray  `gorm:"type:text[]" json:"memberIds"`
	Members           []GroupMember   `gorm:"foreignKey:GroupID" json:"members"`
	Expenses          []Expense       `gorm:"foreignKey:GroupID" json:"expenses"`
	Revision          int64           `gorm:"not null" json:"revision"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// Normalize applies defaults for fields older documents may lack. It runs once
// at the store boundary so the services never see a partially populated group.
func (g *Group) Normalize() {
	if g.Status == "" {
		g.Status = GroupStatusActive
	}
	if g.Members == nil {
		g.Members = []GroupMember{}
	}
	if g.Expenses == nil {
		g.Expenses = []Expense{}
	}
	for i := range g.Members {
		g.Members[i].GroupID = g.ID
		g.Members[i].Position = i
		g.Members[i].Normalize()
	}
	g.SyncMemberIDs()
}

// Clone returns a deep copy that can be mutated without touching g.
func (g *Group) Clone() *Group {
	c := *g
	if g.DeadlineDate != nil {
		d := *g.DeadlineDate
		c.DeadlineDate = &d
	}
	c.MemberIDs = append(pq.StringArray(nil), g.MemberIDs...)
	c.Members = make([]GroupMember, len(g.Members))
	for i, m := range g.Members {
		c.Members[i] = m.clone()
	}
	c.Expenses = append([]Expense(nil), g.Expenses...)
	return &c
}

// AdminID is the owner id, falling back to the legacy payer id.
func (g *Group) AdminID() string {
	if g.CreatedBy != "" {
		return g.CreatedBy
	}
	return g.PayerID
}

func (g *Group) IsAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == g.CreatedBy || userID == g.PayerID
}

func (g *Group) Member(id string) *GroupMember {
	for i := range g.Members {
		if g.Members[i].ID == id {
			return &g.Members[i]
		}
	}
	return nil
}

func (g *Group) HasMember(id string) bool {
	return g.Member(id) != nil
}

// AddMember appends m unless a member with the same id exists. It reports
// whether the member list changed.
func (g *Group) AddMember(m GroupMember) bool {
	if g.HasMember(m.ID) {
		return false
	}
	m.GroupID = g.ID
	m.Position = len(g.Members)
	g.Members = append(g.Members, m)
	g.SyncMemberIDs()
	return true
}

func (g *Group) RemoveMember(id string) bool {
	kept := g.Members[:0]
	removed := false
	for _, m := range g.Members {
		if m.ID == id {
			removed = true
			continue
		}
		m.Position = len(kept)
		kept = append(kept, m)
	}
	g.Members = kept
	g.SyncMemberIDs()
	return removed
}

// SyncMemberIDs rebuilds the membership index from Members.
func (g *Group) SyncMemberIDs() {
	ids := make(pq.StringArray, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.ID)
	}
	g.MemberIDs = ids
}

// TotalAmount is the ledger sum when expenses exist, otherwise the declared amount.
func (g *Group) TotalAmount() decimal.Decimal {
	if len(g.Expenses) == 0 {
		return g.Amount
	}
	total := decimal.Zero
	for _, e := range g.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// ShareAmount splits the total evenly across every member, admin included.
func (g *Group) ShareAmount() decimal.Decimal {
	if len(g.Members) == 0 {
		return decimal.Zero
	}
	return g.TotalAmount().DivRound(decimal.NewFromInt(int64(len(g.Members))), 2)
}

// IsCompleted is true once every non-admin member is paid. When the receipt
// is required the consolidated receipt must also be present.
func (g *Group) IsCompleted(requireReceipt bool) bool {
	admin := g.AdminID()
	for _, m := range g.Members {
		if m.ID == admin {
			continue
		}
		if m.Status != MemberStatusPaid {
			return false
		}
	}
	if requireReceipt && g.ExpenseReceiptURL == "" {
		return false
	}
	return true
}

func (g *Group) IsOverdue(now time.Time) bool {
	return g.DeadlineDate != nil && now.After(*g.DeadlineDate)
}

// IsDebtor reports whether the member is unpaid after the deadline has passed.
func (g *Group) IsDebtor(m GroupMember, now time.Time) bool {
	if m.ID == g.AdminID() || m.Status == MemberStatusPaid {
		return false
	}
	return g.IsOverdue(now)
}

func (g *Group) Debtors(now time.Time) []GroupMember {
	var out []GroupMember
	for _, m := range g.Members {
		if g.IsDebtor(m, now) {
			out = append(out, m)
		}
	}
	return out
}

// Summary derives the read-only settlement view of the group at now.
func (g *Group) Summary(now time.Time, requireReceipt bool) GroupSummary {
	s := GroupSummary{
		Total:       g.TotalAmount(),
		Share:       g.ShareAmount(),
		MemberCount: len(g.Members),
		Completed:   g.IsCompleted(requireReceipt),
		Overdue:     g.IsOverdue(now),
		Debtors:     []MemberRef{},
	}
	for _, m := range g.Members {
		switch m.Status {
		case MemberStatusPaid:
			s.PaidCount++
		case MemberStatusPendingApproval:
			s.AwaitingApprovalCount++
		default:
			s.PendingCount++
		}
	}
	for _, m := range g.Debtors(now) {
		s.Debtors = append(s.Debtors, MemberRef{ID: m.ID, Name: m.Name})
	}
	collected := decimal.NewFromInt(int64(s.PaidCount)).Mul(s.Share)
	s.Outstanding = s.Total.Sub(collected)
	if s.Outstanding.IsNegative() {
		s.Outstanding = decimal.Zero
	}
	if g.DeadlineDate != nil && !s.Overdue {
		s.TimeRemaining = g.DeadlineDate.Sub(now).Round(time.Second).String()
	}
	return s
}

// GroupMember is one participant of a group. Status moves through
// pending -> pending_approval -> paid and may cycle back.
type GroupMember struct {
	GroupID     string     `gorm:"type:uuid;primaryKey" json:"-"`
	ID          string     `gorm:"primaryKey;size:128" json:"id"`
	Position    int        `gorm:"not null" json:"-"`
	Name        string     `gorm:"not null;size:100" json:"name"`
	Email       string     `gorm:"size:255" json:"email,omitempty"`
	JoinedAt    time.Time  `json:"joinedAt"`
	Status      string     `gorm:"not null;size:20" json:"status"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	ReceiptURL  string     `json:"receiptUrl,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

const (
	MemberStatusPending         = "pending"
	MemberStatusPendingApproval = "pending_approval"
	MemberStatusPaid            = "paid"
)

func ValidMemberStatus(s string) bool {
	switch s {
	case MemberStatusPending, MemberStatusPendingApproval, MemberStatusPaid:
		return true
	}
	return false
}

// Normalize repairs legacy records: unknown statuses become pending and
// paidAt is dropped unless the member is paid.
func (m *GroupMember) Normalize() {
	if !ValidMemberStatus(m.Status) {
		m.Status = MemberStatusPending
	}
	if m.Status != MemberStatusPaid {
		m.PaidAt = nil
	}
	m.Name = strings.TrimSpace(m.Name)
}

func (m GroupMember) clone() GroupMember {
	if m.PaidAt != nil {
		t := *m.PaidAt
		m.PaidAt = &t
	}
	if m.SubmittedAt != nil {
		t := *m.SubmittedAt
		m.SubmittedAt = &t
	}
	return m
}

// MarkPaid sets the paid status with its timestamp.
func (m *GroupMember) MarkPaid(at time.Time) {
	m.Status = MemberStatusPaid
	m.PaidAt = &at
}

func (m *GroupMember) MarkPending() {
	m.Status = MemberStatusPending
	m.PaidAt = nil
}

type MemberRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Request structs
type CreateGroupRequest struct {
	Name           string       `json:"name" binding:"required"`
	PayerName      string       `json:"payerName" binding:"required"`
	Alias          string       `json:"alias" binding:"required"`
	Description    string       `json:"description"`
	Amount         string       `json:"amount"`
	Deadline       DeadlineSpec `json:"deadline"`
	RecycleMembers []MemberRef  `json:"existingMembers"`
}

type GroupResponse struct {
	*Group
	Summary GroupSummary `json:"summary"`
	IsAdmin bool         `json:"isAdmin"`
}
