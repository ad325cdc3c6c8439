package stats

import (
	"context"

	"mobility-challenge/activities"

	"gorm.io/gorm"
)

// Member is a participant as seen by the aggregator.
type Member struct {
	ID     uint
	Name   string
	TeamID *uint
}

type Team struct {
	ID   uint
	Name string
}

// Entry is one activity reduced to what the aggregator sums.
type Entry struct {
	UserID     uint
	Date       string
	Type       activities.Type
	DistanceKm float64
}

// Source supplies fresh snapshots of the challenge data. Every aggregator
// call reads through it; nothing is cached.
type Source interface {
	Users(ctx context.Context) ([]Member, error)
	// User returns nil, nil when the user does not exist.
	User(ctx context.Context, id uint) (*Member, error)
	Teams(ctx context.Context) ([]Team, error)
	Activities(ctx context.Context) ([]Entry, error)
	UserActivities(ctx context.Context, userID uint) ([]Entry, error)
}

type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (s *GormSource) Users(ctx context.Context) ([]Member, error) {
	var out []Member
	err := s.db.WithContext(ctx).Table("users").Select("id", "name", "team_id").Order("id").Scan(&out).Error
	return out, err
}

func (s *GormSource) User(ctx context.Context, id uint) (*Member, error) {
	var out []Member
	err := s.db.WithContext(ctx).Table("users").Select("id", "name", "team_id").Where("id = ?", id).Limit(1).Scan(&out).Error
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (s *GormSource) Teams(ctx context.Context) ([]Team, error) {
	var out []Team
	err := s.db.WithContext(ctx).Table("teams").Select("id", "name").Order("id").Scan(&out).Error
	return out, err
}

func (s *GormSource) Activities(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := s.db.WithContext(ctx).Model(&activities.ActivityModel{}).
		Select("user_id", "date", "type", "distance_km").
		Scan(&out).Error
	return out, err
}

func (s *GormSource) UserActivities(ctx context.Context, userID uint) ([]Entry, error) {
	var out []Entry
	err := s.db.WithContext(ctx).Model(&activities.ActivityModel{}).
		Select("user_id", "date", "type", "distance_km").
		Where("user_id = ?", userID).
		Scan(&out).Error
	return out, err
}
