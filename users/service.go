package users

import (
	"context"
	"strings"

	"mobility-challenge/auth"
	"mobility-challenge/common"
	"mobility-challenge/teams"

	"gorm.io/gorm"
)

const (
	// MinPasswordLength applies to self-registration.
	MinPasswordLength = 8
	// MinAdminPasswordLength applies to accounts created by an admin.
	MinAdminPasswordLength = 6
)

// RegisterInput is the data a new participant signs up with.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	TeamID   uint
}

// CreateInput is the data an admin creates an account with.
type CreateInput struct {
	RegisterInput
	Role auth.Role
}

// Patch holds the admin-editable fields. Nil fields are left unchanged.
type Patch struct {
	Name   *string
	Email  *string
	TeamID *uint
	Role   *auth.Role
}

// Session is the result of a successful login.
type Session struct {
	Token string     `json:"token"`
	User  *UserModel `json:"user"`
}

type Service struct {
	db     *gorm.DB
	teams  *teams.Service
	issuer *auth.Issuer
}

func NewService(db *gorm.DB, teamSvc *teams.Service, issuer *auth.Issuer) *Service {
	return &Service{db: db, teams: teamSvc, issuer: issuer}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*UserModel, error) {
	return s.create(ctx, in, auth.RoleUser, MinPasswordLength)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*UserModel, error) {
	role := in.Role
	if role == "" {
		role = auth.RoleUser
	}
	return s.create(ctx, in.RegisterInput, role, MinAdminPasswordLength)
}

func (s *Service) create(ctx context.Context, in RegisterInput, role auth.Role, minPassword int) (*UserModel, error) {
	name := strings.TrimSpace(in.Name)
	email := common.NormalizeEmail(in.Email)

	if name == "" {
		return nil, common.InvalidInput("VALIDATION_ERROR", "Name is required")
	}
	if !common.ValidateEmail(email) {
		return nil, common.InvalidInput("VALIDATION_ERROR", "Invalid email")
	}
	if len(in.Password) < minPassword {
		return nil, common.InvalidInput("VALIDATION_ERROR", "Password is too short")
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}
	if err := s.checkTeam(ctx, in.TeamID); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, common.AsDatabase(err, "Failed to hash password")
	}
	teamID := in.TeamID
	user := UserModel{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		TeamID:       &teamID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if common.IsDuplicateKey(err) {
			return nil, common.Conflict("EMAIL_EXISTS", "Email already registered")
		}
		return nil, common.AsDatabase(err, "Failed to create user")
	}
	return &user, nil
}

// Login checks the credentials and signs a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	var user UserModel
	err := s.db.WithContext(ctx).Where("email = ?", common.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if common.IsRecordNotFound(err) {
			return nil, common.Unauthorized("INVALID_CREDENTIALS", "Invalid credentials")
		}
		return nil, common.AsDatabase(err, "Failed to load user")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, common.Unauthorized("INVALID_CREDENTIALS", "Invalid credentials")
	}
	token, err := s.issuer.Sign(user.ID, user.Role)
	if err != nil {
		return nil, common.AsDatabase(err, "Failed to sign token")
	}
	return &Session{Token: token, User: &user}, nil
}

// Get loads a user with its team.
func (s *Service) Get(ctx context.Context, id uint) (*UserModel, error) {
	var user UserModel
	if err := s.db.WithContext(ctx).Preload("Team").First(&user, id).Error; err != nil {
		if common.IsRecordNotFound(err) {
			return nil, common.NotFound("USER_NOT_FOUND", "User not found")
		}
		return nil, common.AsDatabase(err, "Failed to load user")
	}
	return &user, nil
}

// List returns one page of users ordered by id.
func (s *Service) List(ctx context.Context, p common.Pagination) (common.Page[UserModel], error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&total).Error; err != nil {
		return common.Page[UserModel]{}, common.AsDatabase(err, "Failed to count users")
	}
	var out []UserModel
	if err := s.db.WithContext(ctx).Preload("Team").Order("id ASC").Offset(p.Skip).Limit(p.Take).Find(&out).Error; err != nil {
		return common.Page[UserModel]{}, common.AsDatabase(err, "Failed to list users")
	}
	return common.Page[UserModel]{Items: out, Meta: p.Meta(total)}, nil
}

func (s *Service) Update(ctx context.Context, id uint, patch Patch) (*UserModel, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, common.InvalidInput("VALIDATION_ERROR", "Name is required")
		}
		user.Name = name
	}
	if patch.Email != nil {
		email := common.NormalizeEmail(*patch.Email)
		if !common.ValidateEmail(email) {
			return nil, common.InvalidInput("VALIDATION_ERROR", "Invalid email")
		}
		if err := s.checkEmailFree(ctx, email, user.ID); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if patch.Role != nil {
		if err := validateRole(*patch.Role); err != nil {
			return nil, err
		}
		user.Role = *patch.Role
	}
	if patch.TeamID != nil {
		if err := s.checkTeam(ctx, *patch.TeamID); err != nil {
			return nil, err
		}
		teamID := *patch.TeamID
		user.TeamID = &teamID
	}
	user.Team = nil

	err = s.db.WithContext(ctx).Model(user).
		Select("name", "email", "role", "team_id", "updated_at").
		Updates(user).Error
	if err != nil {
		if common.IsDuplicateKey(err) {
			return nil, common.Conflict("EMAIL_EXISTS", "Email already registered")
		}
		return nil, common.AsDatabase(err, "Failed to update user")
	}
	return s.Get(ctx, id)
}

// Delete removes a user and all of their activities.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&UserModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return common.NotFound("USER_NOT_FOUND", "User not found")
		}
		if err := tx.Exec("DELETE FROM activities WHERE user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, id).Error
	})
	return common.AsDatabase(err, "Failed to delete user")
}

func (s *Service) checkEmailFree(ctx context.Context, email string, self uint) error {
	var n int64
	err := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("email = ? AND id <> ?", email, self).
		Count(&n).Error
	if err != nil {
		return common.AsDatabase(err, "Failed to look up email")
	}
	if n > 0 {
		return common.Conflict("EMAIL_EXISTS", "Email already registered")
	}
	return nil
}

func (s *Service) checkTeam(ctx context.Context, teamID uint) error {
	if teamID == 0 {
		return common.InvalidInput("VALIDATION_ERROR", "A team is required")
	}
	ok, err := s.teams.Exists(ctx, teamID)
	if err != nil {
		return err
	}
	if !ok {
		return common.NotFound("TEAM_NOT_FOUND", "Team not found")
	}
	return nil
}

func validateRole(role auth.Role) error {
	if verr := common.ValidateEnum("role", string(role), []string{string(auth.RoleUser), string(auth.RoleAdmin)}); verr != nil {
		return common.InvalidInput("VALIDATION_ERROR", verr.Message)
	}
	return nil
}
