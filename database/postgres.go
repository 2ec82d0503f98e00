package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"rata-backend/logger"
	"rata-backend/models"
)

// Connect opens the PostgreSQL connection and migrates the schema.
func Connect(dsn string) (*gorm.DB, error) {
	log := logger.GetLogger()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connected successfully")

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.Expense{},
		&models.Bill{},
		&models.BillFriend{},
		&models.Invitation{},
		&models.Activity{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("Database migrated successfully")
	return db, nil
}

// PostgresStore implements Store with gorm. Group and bill rows carry a
// revision column; every aggregate write is conditional on the revision read.
type PostgresStore struct {
	db         *gorm.DB
	feed       ChangeFeed
	maxRetries int
}

func NewPostgresStore(db *gorm.DB, feed ChangeFeed) *PostgresStore {
	return &PostgresStore{db: db, feed: feed, maxRetries: defaultMaxRetries}
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func orderedMembers(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func orderedExpenses(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

func orderedFriends(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (s *PostgresStore) CreateGroup(ctx context.Context, g *models.Group) error {
	g.Revision = 1
	g.Normalize()
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return err
	}
	publish(ctx, s.feed, GroupChange(g))
	return nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	err := s.db.WithContext(ctx).
		Preload("Members", orderedMembers).
		Preload("Expenses", orderedExpenses).
		Where("id = ?", id).
		First(&g).Error
	if err != nil {
		return nil, notFound(err)
	}
	g.Normalize()
	return &g, nil
}

func (s *PostgresStore) ListGroupsForMember(ctx context.Context, userID string) ([]*models.Group, error) {
	var groups []*models.Group
	err := s.db.WithContext(ctx).
		Preload("Members", orderedMembers).
		Preload("Expenses", orderedExpenses).
		Where("? = ANY(member_ids)", userID).
		Order("created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		g.Normalize()
	}
	return groups, nil
}

func (s *PostgresStore) UpdateGroup(ctx context.Context, id string, mutate GroupMutator) (*models.Group, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		current, err := s.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			if errors.Is(err, ErrSkipWrite) {
				return current, nil
			}
			return nil, err
		}
		next.ID = current.ID
		next.Expenses = current.Expenses
		next.Normalize()

		err = s.saveGroup(ctx, current.Revision, next)
		if errors.Is(err, ErrConflict) {
			logger.GetLogger().Debugw("Group revision conflict, retrying", "groupID", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		publish(ctx, s.feed, GroupChange(next))
		return next, nil
	}
	return nil, ErrConflict
}

// saveGroup writes the group row and its members in one transaction, guarded by
// the revision that was read.
func (s *PostgresStore) saveGroup(ctx context.Context, revision int64, g *models.Group) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Group{}).
			Where("id = ? AND revision = ?", g.ID, revision).
			Updates(map[string]interface{}{
				"name":                g.Name,
				"description":         g.Description,
				"alias":               g.Alias,
				"amount":              g.Amount,
				"payer_name":          g.PayerName,
				"payer_id":            g.PayerID,
				"created_by":          g.CreatedBy,
				"owner_email":         g.OwnerEmail,
				"deadline_date":       g.DeadlineDate,
				"status":              g.Status,
				"expense_receipt_url": g.ExpenseReceiptURL,
				"member_ids":          g.MemberIDs,
				"revision":            revision + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		stale := tx.Where("group_id = ?", g.ID)
		if len(g.MemberIDs) > 0 {
			stale = stale.Where("id NOT IN ?", []string(g.MemberIDs))
		}
		if err := stale.Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		if len(g.Members) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&g.Members).Error; err != nil {
				return err
			}
		}
		g.Revision = revision + 1
		return nil
	})
}

func (s *PostgresStore) AppendExpense(ctx context.Context, groupID string, e *models.Expense) (*models.Group, error) {
	e.GroupID = groupID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Group{}).
			Where("id = ?", groupID).
			Updates(map[string]interface{}{
				"amount":   gorm.Expr("amount + ?", e.Amount),
				"revision": gorm.Expr("revision + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(e).Error
	})
	if err != nil {
		return nil, err
	}

	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.feed, GroupChange(g))
	return g, nil
}

func (s *PostgresStore) DeleteGroup(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.Activity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.Expense{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Group{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	publish(ctx, s.feed, DeletedChange(KindGroup, id))
	return nil
}

func (s *PostgresStore) CreateBill(ctx context.Context, b *models.Bill) error {
	b.Revision = 1
	b.Normalize()
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return err
	}
	publish(ctx, s.feed, BillChange(b))
	return nil
}

func (s *PostgresStore) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	var b models.Bill
	err := s.db.WithContext(ctx).
		Preload("Friends", orderedFriends).
		Where("id = ?", id).
		First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	b.Normalize()
	return &b, nil
}

func (s *PostgresStore) UpdateBill(ctx context.Context, id string, mutate BillMutator) (*models.Bill, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		current, err := s.GetBill(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			if errors.Is(err, ErrSkipWrite) {
				return current, nil
			}
			return nil, err
		}
		next.ID = current.ID
		next.Normalize()

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Bill{}).
				Where("id = ? AND revision = ?", next.ID, current.Revision).
				Updates(map[string]interface{}{
					"status":   next.Status,
					"revision": current.Revision + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
			if len(next.Friends) > 0 {
				return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&next.Friends).Error
			}
			return nil
		})
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		next.Revision = current.Revision + 1
		publish(ctx, s.feed, BillChange(next))
		return next, nil
	}
	return nil, ErrConflict
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locking the group row serialises concurrent invites for the same group.
		var g models.Group
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", inv.GroupID).
			First(&g).Error
		if err != nil {
			return notFound(err)
		}

		var pending int64
		err = tx.Model(&models.Invitation{}).
			Where("group_id = ? AND to_uid = ? AND status = ?", inv.GroupID, inv.ToUID, models.InvitationPending).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicatePending
		}
		return tx.Create(inv).Error
	})
}

func (s *PostgresStore) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func invitationQuery(db *gorm.DB, filter models.InvitationFilter) *gorm.DB {
	q := db.Model(&models.Invitation{})
	if filter.GroupID != "" {
		q = q.Where("group_id = ?", filter.GroupID)
	}
	if filter.ToUID != "" {
		q = q.Where("to_uid = ?", filter.ToUID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return q
}

func (s *PostgresStore) ListInvitations(ctx context.Context, filter models.InvitationFilter) ([]*models.Invitation, error) {
	var out []*models.Invitation
	err := invitationQuery(s.db.WithContext(ctx), filter).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *PostgresStore) CountInvitations(ctx context.Context, filter models.InvitationFilter) (int64, error) {
	var n int64
	err := invitationQuery(s.db.WithContext(ctx), filter).Count(&n).Error
	return n, err
}

func (s *PostgresStore) UpdateInvitationStatus(ctx context.Context, id, status string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, models.InvitationPending).
		Updates(map[string]interface{}{"status": status, "responded_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Invitation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrAlreadyAnswered
}

func (s *PostgresStore) DeleteInvitation(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invitation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "search_name", "photo_url", "last_seen", "updated_at"}),
	}).Omit("fcm_token").Create(u).Error
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *PostgresStore) SearchUsers(ctx context.Context, prefix string, limit int) ([]*models.User, error) {
	var out []*models.User
	err := s.db.WithContext(ctx).
		Where(`search_name LIKE ? ESCAPE '\'`, likeEscaper.Replace(prefix)+"%").
		Order("search_name ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *PostgresStore) SetPushToken(ctx context.Context, userID, token string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordActivity(ctx context.Context, a *models.Activity) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *PostgresStore) ListActivity(ctx context.Context, groupID string, limit, offset int) ([]*models.Activity, error) {
	var out []*models.Activity
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
