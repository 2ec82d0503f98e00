package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	BillStatusActive    = "active"
	BillStatusCompleted = "completed"

	FriendStatusPending = "pending"
	FriendStatusPaid    = "paid"
)

// Bill is a one-off split seeded with a fixed list of friends.
type Bill struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	Description     string          `gorm:"not null;size:255" json:"description"`
	Alias           string          `gorm:"size:100" json:"alias,omitempty"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"totalAmount"`
	FriendsCount    int             `gorm:"not null" json:"friendsCount"`
	AmountPerPerson decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amountPerPerson"`
	Friends         []BillFriend    `gorm:"foreignKey:BillID" json:"friends"`
	GroupID         *string         `gorm:"type:uuid;index" json:"groupId"`
	CreatedBy       string          `gorm:"size:128" json:"createdBy,omitempty"`
	Status          string          `gorm:"not null;size:20" json:"status"`
	Revision        int64           `gorm:"not null" json:"revision"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (b *Bill) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (b *Bill) Normalize() {
	if b.Status == "" {
		b.Status = BillStatusActive
	}
	if b.Friends == nil {
		b.Friends = []BillFriend{}
	}
	for i := range b.Friends {
		b.Friends[i].BillID = b.ID
		b.Friends[i].Position = i
		if b.Friends[i].Status != FriendStatusPaid {
			b.Friends[i].Status = FriendStatusPending
			b.Friends[i].PaidAt = nil
		}
	}
}

func (b *Bill) Clone() *Bill {
	c := *b
	if b.GroupID != nil {
		id := *b.GroupID
		c.GroupID = &id
	}
	c.Friends = make([]BillFriend, len(b.Friends))
	for i, f := range b.Friends {
		if f.PaidAt != nil {
			t := *f.PaidAt
			f.PaidAt = &t
		}
		c.Friends[i] = f
	}
	return &c
}

func (b *Bill) Friend(id string) *BillFriend {
	for i := range b.Friends {
		if b.Friends[i].ID == id {
			return &b.Friends[i]
		}
	}
	return nil
}

func (b *Bill) AllPaid() bool {
	if len(b.Friends) == 0 {
		return false
	}
	for _, f := range b.Friends {
		if f.Status != FriendStatusPaid {
			return false
		}
	}
	return true
}

// RefreshStatus completes the bill once every friend has paid.
func (b *Bill) RefreshStatus() {
	if b.AllPaid() {
		b.Status = BillStatusCompleted
	} else {
		b.Status = BillStatusActive
	}
}

func (b *Bill) PaidCount() int {
	n := 0
	for _, f := range b.Friends {
		if f.Status == FriendStatusPaid {
			n++
		}
	}
	return n
}

type BillFriend struct {
	BillID   string          `gorm:"type:uuid;primaryKey" json:"-"`
	ID       string          `gorm:"primaryKey;size:128" json:"id"`
	Position int             `gorm:"not null" json:"-"`
	Name     string          `gorm:"not null;size:100" json:"name"`
	Status   string          `gorm:"not null;size:20" json:"status"`
	Amount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	ProofURL string          `json:"proofUrl,omitempty"`
	PaidAt   *time.Time      `json:"paidAt,omitempty"`
}

// Request structs
type CreateBillRequest struct {
	Description  string      `json:"description" binding:"required"`
	Alias        string      `json:"alias"`
	Amount       string      `json:"amount" binding:"required"`
	FriendsCount int         `json:"friends"`
	GroupID      string      `json:"groupId"`
	GroupMembers []MemberRef `json:"groupMembers"`
}

type MarkFriendPaidRequest struct {
	ProofURL string `json:"proofUrl"`
}

type PaymentLinkResponse struct {
	URL string `json:"url"`
}
