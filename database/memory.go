package database

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rata-backend/models"
)

// MemoryStore keeps every document in process memory. It backs DATABASE_URL=memory://
// and the service tests. All reads and writes go through deep copies.
type MemoryStore struct {
	mu          sync.Mutex
	groups      map[string]*models.Group
	bills       map[string]*models.Bill
	invitations map[string]*models.Invitation
	users       map[string]*models.User
	activity    map[string][]*models.Activity
	feed        ChangeFeed
	now         func() time.Time
}

func NewMemoryStore(feed ChangeFeed) *MemoryStore {
	return &MemoryStore{
		groups:      make(map[string]*models.Group),
		bills:       make(map[string]*models.Bill),
		invitations: make(map[string]*models.Invitation),
		users:       make(map[string]*models.User),
		activity:    make(map[string][]*models.Activity),
		feed:        feed,
		now:         time.Now,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateGroup(ctx context.Context, g *models.Group) error {
	s.mu.Lock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := s.now()
	g.CreatedAt, g.UpdatedAt = now, now
	g.Revision = 1
	g.Normalize()
	s.groups[g.ID] = g.Clone()
	s.mu.Unlock()

	publish(ctx, s.feed, GroupChange(g))
	return nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *MemoryStore) ListGroupsForMember(ctx context.Context, userID string) ([]*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Group
	for _, g := range s.groups {
		for _, id := range g.MemberIDs {
			if id == userID {
				out = append(out, g.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateGroup(ctx context.Context, id string, mutate GroupMutator) (*models.Group, error) {
	s.mu.Lock()
	current, ok := s.groups[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrSkipWrite) {
			return current.Clone(), nil
		}
		return nil, err
	}
	next.ID = current.ID
	next.Expenses = current.Clone().Expenses
	next.Revision = current.Revision + 1
	next.UpdatedAt = s.now()
	next.Normalize()
	s.groups[id] = next.Clone()
	s.mu.Unlock()

	publish(ctx, s.feed, GroupChange(next))
	return next, nil
}

func (s *MemoryStore) AppendExpense(ctx context.Context, groupID string, e *models.Expense) (*models.Group, error) {
	s.mu.Lock()
	g, ok := s.groups[groupID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.GroupID = groupID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	g.Expenses = append(g.Expenses, *e)
	g.Amount = g.Amount.Add(e.Amount)
	g.Revision++
	g.UpdatedAt = s.now()
	out := g.Clone()
	s.mu.Unlock()

	publish(ctx, s.feed, GroupChange(out))
	return out, nil
}

func (s *MemoryStore) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.groups[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.groups, id)
	delete(s.activity, id)
	for invID, inv := range s.invitations {
		if inv.GroupID == id {
			delete(s.invitations, invID)
		}
	}
	s.mu.Unlock()

	publish(ctx, s.feed, DeletedChange(KindGroup, id))
	return nil
}

func (s *MemoryStore) CreateBill(ctx context.Context, b *models.Bill) error {
	s.mu.Lock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	b.Revision = 1
	b.Normalize()
	s.bills[b.ID] = b.Clone()
	s.mu.Unlock()

	publish(ctx, s.feed, BillChange(b))
	return nil
}

func (s *MemoryStore) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (s *MemoryStore) UpdateBill(ctx context.Context, id string, mutate BillMutator) (*models.Bill, error) {
	s.mu.Lock()
	current, ok := s.bills[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrSkipWrite) {
			return current.Clone(), nil
		}
		return nil, err
	}
	next.ID = current.ID
	next.Revision = current.Revision + 1
	next.UpdatedAt = s.now()
	next.Normalize()
	s.bills[id] = next.Clone()
	s.mu.Unlock()

	publish(ctx, s.feed, BillChange(next))
	return next, nil
}

func (s *MemoryStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[inv.GroupID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.invitations {
		if existing.GroupID == inv.GroupID && existing.ToUID == inv.ToUID && existing.Status == models.InvitationPending {
			return ErrDuplicatePending
		}
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	c := *inv
	s.invitations[inv.ID] = &c
	return nil
}

func (s *MemoryStore) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *inv
	return &c, nil
}

func (s *MemoryStore) ListInvitations(ctx context.Context, filter models.InvitationFilter) ([]*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Invitation
	for _, inv := range s.invitations {
		if filter.Matches(inv) {
			c := *inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CountInvitations(ctx context.Context, filter models.InvitationFilter) (int64, error) {
	list, err := s.ListInvitations(ctx, filter)
	return int64(len(list)), err
}

func (s *MemoryStore) UpdateInvitationStatus(ctx context.Context, id, status string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return ErrNotFound
	}
	if inv.Status != models.InvitationPending {
		return ErrAlreadyAnswered
	}
	inv.Status = status
	inv.RespondedAt = &at
	return nil
}

func (s *MemoryStore) DeleteInvitation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[id]; !ok {
		return ErrNotFound
	}
	delete(s.invitations, id)
	return nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := *u
	if existing, ok := s.users[u.ID]; ok {
		c.FCMToken = existing.FCMToken
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.users[u.ID] = &c
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) SearchUsers(ctx context.Context, prefix string, limit int) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.User
	for _, u := range s.users {
		if strings.HasPrefix(u.SearchName, prefix) {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SearchName == out[j].SearchName {
			return out[i].ID < out[j].ID
		}
		return out[i].SearchName < out[j].SearchName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SetPushToken(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.FCMToken = token
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) RecordActivity(ctx context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	c := *a
	s.activity[a.GroupID] = append(s.activity[a.GroupID], &c)
	return nil
}

func (s *MemoryStore) ListActivity(ctx context.Context, groupID string, limit, offset int) ([]*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.activity[groupID]
	out := make([]*models.Activity, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		c := *all[i]
		out = append(out, &c)
	}
	if offset >= len(out) {
		return []*models.Activity{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
