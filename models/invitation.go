package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRejected = "rejected"
)

// Invitation is kept separate from the group so that a user can list the
// invitations addressed to them without reading any group.
type Invitation struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     string     `gorm:"type:uuid;index" json:"groupId"`
	GroupName   string     `gorm:"size:100" json:"groupName"`
	ToUID       string     `gorm:"size:128;index" json:"toUid"`
	FromUID     string     `gorm:"size:128" json:"fromUid"`
	FromName    string     `gorm:"size:100" json:"fromName"`
	Status      string     `gorm:"not null;size:20;index" json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// InvitationFilter selects invitations; empty fields match anything.
type InvitationFilter struct {
	GroupID string
	ToUID   string
	Status  string
}

func (f InvitationFilter) Matches(inv *Invitation) bool {
	if f.GroupID != "" && inv.GroupID != f.GroupID {
		return false
	}
	if f.ToUID != "" && inv.ToUID != f.ToUID {
		return false
	}
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	return true
}

type InviteRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type RespondInvitationRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}
