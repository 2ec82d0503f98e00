package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity types recorded against a group.
const (
	ActivityGroupCreated    = "group_created"
	ActivityMemberJoined    = "member_joined"
	ActivityMemberLeft      = "member_left"
	ActivityExpenseAdded    = "expense_added"
	ActivityProofSubmitted  = "proof_submitted"
	ActivityProofApproved   = "proof_approved"
	ActivityProofRejected   = "proof_rejected"
	ActivityPaymentToggled  = "payment_toggled"
	ActivityReceiptUploaded = "receipt_uploaded"
)

// Activity is an audit line for a group. It lives outside the group document
// and is removed together with it.
type Activity struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     string    `gorm:"type:uuid;index" json:"groupId"`
	ActorID     string    `gorm:"size:128" json:"actorId"`
	MemberID    string    `gorm:"size:128" json:"memberId,omitempty"`
	Type        string    `gorm:"not null;size:30" json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
