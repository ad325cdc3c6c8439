package activities

import (
	"context"
	"errors"

	"mobility-challenge/users"

	"gorm.io/gorm"
)

// ListFilter narrows List. A nil field does not filter.
type ListFilter struct {
	UserID *uint
}

// Store is the persistence the Ledger needs.
type Store interface {
	// Owner returns nil, nil when the user does not exist.
	Owner(ctx context.Context, userID uint) (*Owner, error)
	Owners(ctx context.Context, userIDs []uint) (map[uint]Owner, error)
	// Find returns nil, nil when the activity does not exist.
	Find(ctx context.Context, id uint) (*ActivityModel, error)
	ExistsOnDay(ctx context.Context, userID uint, day string, excludeID uint) (bool, error)
	Create(ctx context.Context, a *ActivityModel) error
	Save(ctx context.Context, a *ActivityModel) error
	Delete(ctx context.Context, id uint) (bool, error)
	// List returns activities by date then id, most recent first, and the
	// unpaginated total.
	List(ctx context.Context, f ListFilter, offset, limit int) ([]ActivityModel, int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Owner(ctx context.Context, userID uint) (*Owner, error) {
	owners, err := s.Owners(ctx, []uint{userID})
	if err != nil {
		return nil, err
	}
	owner, ok := owners[userID]
	if !ok {
		return nil, nil
	}
	return &owner, nil
}

func (s *GormStore) Owners(ctx context.Context, userIDs []uint) (map[uint]Owner, error) {
	out := make(map[uint]Owner, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []users.UserModel
	err := s.db.WithContext(ctx).
		Select("id", "name", "team_id").
		Where("id IN ?", userIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, u := range rows {
		out[u.ID] = Owner{ID: u.ID, Name: u.Name, TeamID: u.TeamID}
	}
	return out, nil
}

func (s *GormStore) Find(ctx context.Context, id uint) (*ActivityModel, error) {
	var a ActivityModel
	err := s.db.WithContext(ctx).First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) ExistsOnDay(ctx context.Context, userID uint, day string, excludeID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&ActivityModel{}).
		Where("user_id = ? AND date = ? AND id <> ?", userID, day, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (s *GormStore) Create(ctx context.Context, a *ActivityModel) error {
	return s.db.WithContext(ctx).Omit("User").Create(a).Error
}

func (s *GormStore) Save(ctx context.Context, a *ActivityModel) error {
	return s.db.WithContext(ctx).Omit("User").Save(a).Error
}

func (s *GormStore) Delete(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&ActivityModel{}, id)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) List(ctx context.Context, f ListFilter, offset, limit int) ([]ActivityModel, int64, error) {
	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []ActivityModel
	err := s.filtered(ctx, f).
		Order("date DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, total, err
}

func (s *GormStore) filtered(ctx context.Context, f ListFilter) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&ActivityModel{})
	if f.UserID != nil {
		tx = tx.Where("user_id = ?", *f.UserID)
	}
	return tx
}
