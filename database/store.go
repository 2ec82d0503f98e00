// Package database holds the persistence boundary: the store interfaces the
// services depend on, a gorm/PostgreSQL implementation, an in-process
// implementation, and the change feed used for live subscriptions.
package database

import (
	"context"
	"errors"
	"time"

	"rata-backend/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("revision conflict")
	ErrDuplicatePending = errors.New("pending invitation already exists")
	ErrAlreadyAnswered  = errors.New("invitation already answered")
	// ErrSkipWrite may be returned by a mutator to leave the document untouched.
	ErrSkipWrite = errors.New("no changes to write")
)

// GroupMutator edits a private copy of the current group. Returning an error
// aborts the write and the error is passed back to the caller.
type GroupMutator func(g *models.Group) error

type BillMutator func(b *models.Bill) error

type GroupStore interface {
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroupsForMember(ctx context.Context, userID string) ([]*models.Group, error)
	// UpdateGroup applies mutate under optimistic concurrency, retrying on
	// revision conflicts, and returns the stored result.
	UpdateGroup(ctx context.Context, id string, mutate GroupMutator) (*models.Group, error)
	// AppendExpense adds the expense and increments the group amount in one step.
	AppendExpense(ctx context.Context, groupID string, e *models.Expense) (*models.Group, error)
	// DeleteGroup removes the group with its members, expenses, invitations and activity.
	DeleteGroup(ctx context.Context, id string) error
}

type BillStore interface {
	CreateBill(ctx context.Context, b *models.Bill) error
	GetBill(ctx context.Context, id string) (*models.Bill, error)
	UpdateBill(ctx context.Context, id string, mutate BillMutator) (*models.Bill, error)
}

type InvitationStore interface {
	// CreateInvitation fails with ErrDuplicatePending when a pending invitation
	// for the same group and user exists, and with ErrNotFound when the group is gone.
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitation(ctx context.Context, id string) (*models.Invitation, error)
	ListInvitations(ctx context.Context, filter models.InvitationFilter) ([]*models.Invitation, error)
	CountInvitations(ctx context.Context, filter models.InvitationFilter) (int64, error)
	// UpdateInvitationStatus answers a pending invitation. It returns
	// ErrAlreadyAnswered when the invitation is no longer pending.
	UpdateInvitationStatus(ctx context.Context, id, status string, at time.Time) error
	DeleteInvitation(ctx context.Context, id string) error
}

type UserStore interface {
	// UpsertUser refreshes the profile fields and keeps the stored push token.
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	SearchUsers(ctx context.Context, prefix string, limit int) ([]*models.User, error)
	SetPushToken(ctx context.Context, userID, token string) error
}

type ActivityStore interface {
	RecordActivity(ctx context.Context, a *models.Activity) error
	ListActivity(ctx context.Context, groupID string, limit, offset int) ([]*models.Activity, error)
}

type Store interface {
	GroupStore
	BillStore
	InvitationStore
	UserStore
	ActivityStore
	Close() error
}

const defaultMaxRetries = 5
