package teams

import (
	"context"
	"errors"
	"strings"

	"mobility-challenge/common"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// TeamInput is the writable part of a team.
type TeamInput struct {
	Name        string
	Description *string
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) summaries(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&TeamModel{}).
		Select("teams.*, COUNT(users.id) AS member_count").
		Joins("LEFT JOIN users ON users.team_id = teams.id").
		Group("teams.id").
		Order("teams.name ASC")
}

// All returns every team ordered by name.
func (s *Service) All(ctx context.Context) ([]TeamSummary, error) {
	var out []TeamSummary
	if err := s.summaries(ctx).Scan(&out).Error; err != nil {
		return nil, common.AsDatabase(err, "Failed to list teams")
	}
	return out, nil
}

// List returns one page of teams ordered by name.
func (s *Service) List(ctx context.Context, p common.Pagination) (common.Page[TeamSummary], error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&TeamModel{}).Count(&total).Error; err != nil {
		return common.Page[TeamSummary]{}, common.AsDatabase(err, "Failed to count teams")
	}
	var out []TeamSummary
	if err := s.summaries(ctx).Offset(p.Skip).Limit(p.Take).Scan(&out).Error; err != nil {
		return common.Page[TeamSummary]{}, common.AsDatabase(err, "Failed to list teams")
	}
	return common.Page[TeamSummary]{Items: out, Meta: p.Meta(total)}, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*TeamModel, error) {
	return s.find(s.db.WithContext(ctx), "id = ?", id)
}

func (s *Service) BySlug(ctx context.Context, teamSlug string) (*TeamModel, error) {
	return s.find(s.db.WithContext(ctx), "slug = ?", teamSlug)
}

// Exists reports whether a team with id exists.
func (s *Service) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&TeamModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, common.AsDatabase(err, "Failed to look up team")
	}
	return n > 0, nil
}

func (s *Service) find(tx *gorm.DB, query string, arg interface{}) (*TeamModel, error) {
	var team TeamModel
	if err := tx.Where(query, arg).First(&team).Error; err != nil {
		if common.IsRecordNotFound(err) {
			return nil, common.NotFound("TEAM_NOT_FOUND", "Team not found")
		}
		return nil, common.AsDatabase(err, "Failed to load team")
	}
	return &team, nil
}

func (s *Service) Create(ctx context.Context, in TeamInput) (*TeamModel, error) {
	team := TeamModel{}
	if err := apply(&team, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&team).Error; err != nil {
		return nil, translateWrite(err)
	}
	return &team, nil
}

func (s *Service) Update(ctx context.Context, id uint, in TeamInput) (*TeamModel, error) {
	team, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if team.Name == UnassignedName && strings.TrimSpace(in.Name) != UnassignedName {
		return nil, common.InvalidInput("TEAM_PROTECTED", "The Unassigned team cannot be renamed")
	}
	if err := apply(team, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(team).Error; err != nil {
		return nil, translateWrite(err)
	}
	return team, nil
}

// Delete removes a team and moves its members to the Unassigned team, which
// is created on demand. It returns how many members were moved.
func (s *Service) Delete(ctx context.Context, id uint) (int64, error) {
	var moved int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := s.find(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if team.Name == UnassignedName {
			return common.InvalidInput("TEAM_PROTECTED", "The Unassigned team cannot be deleted")
		}

		unassigned := TeamModel{Name: UnassignedName, Slug: slug.Make(UnassignedName)}
		if err := tx.Where(TeamModel{Name: UnassignedName}).FirstOrCreate(&unassigned).Error; err != nil {
			return err
		}

		res := tx.Table("users").Where("team_id = ?", team.ID).Update("team_id", unassigned.ID)
		if res.Error != nil {
			return res.Error
		}
		moved = res.RowsAffected

		return tx.Delete(&TeamModel{}, team.ID).Error
	})
	if err != nil {
		return 0, common.AsDatabase(err, "Failed to delete team")
	}
	return moved, nil
}

func apply(team *TeamModel, in TeamInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return common.InvalidInput("INVALID_NAME", "Team name is required")
	}
	teamSlug := slug.Make(name)
	if teamSlug == "" {
		return common.InvalidInput("INVALID_NAME", "Team name must contain letters or digits")
	}
	team.Name = name
	team.Slug = teamSlug
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc == "" {
			team.Description = nil
		} else {
			team.Description = &desc
		}
	}
	return nil
}

func translateWrite(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return common.Conflict("TEAM_NAME_EXISTS", "A team with this name already exists")
	}
	return common.AsDatabase(err, "Failed to save team")
}
