package models

import "github.com/shopspring/decimal"

// GroupSummary is the derived settlement view returned with a group and by
// GET /api/groups/:id/summary.
type GroupSummary struct {
	Total                 decimal.Decimal `json:"total"`
	Share                 decimal.Decimal `json:"share"`
	Outstanding           decimal.Decimal `json:"outstanding"`
	MemberCount           int             `json:"memberCount"`
	PaidCount             int             `json:"paidCount"`
	AwaitingApprovalCount int             `json:"awaitingApprovalCount"`
	PendingCount          int             `json:"pendingCount"`
	Debtors               []MemberRef     `json:"debtors"`
	Completed             bool            `json:"completed"`
	Overdue               bool            `json:"overdue"`
	TimeRemaining         string          `json:"timeRemaining,omitempty"`
}

// GroupListItem is a group card in the caller's dashboard.
type GroupListItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Alias     string          `json:"alias"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Share     decimal.Decimal `json:"share"`
	MyStatus  string          `json:"myStatus"`
	IsAdmin   bool            `json:"isAdmin"`
	IsDebtor  bool            `json:"isDebtor"`
	Members   int             `json:"members"`
	Completed bool            `json:"completed"`
}
