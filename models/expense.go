package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is an append-only ledger line inside a group.
type Expense struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     string          `gorm:"type:uuid;index" json:"-"`
	Description string          `gorm:"not null;size:255" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PayerID     string          `gorm:"size:128" json:"payerId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Request structs
type CreateExpenseRequest struct {
	Description string `json:"description" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	PayerID     string `json:"payerId"`
}
