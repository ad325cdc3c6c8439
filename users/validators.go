package users

import (
	"context"
	"strconv"
	"strings"

	"mobility-challenge/auth"
	"mobility-challenge/common"

	"gorm.io/gorm"
)

// SeedRecord is a validated user row ready to be upserted.
type SeedRecord struct {
	Name     string
	Email    string
	Password string
	Role     auth.Role
	TeamName string
}

// UserValidator validates user records for the seed loader. Users are keyed
// by email; an email repeated within one file is rejected.
type UserValidator struct {
	teamNames     map[string]bool
	emailsInBatch map[string]bool
}

// NewUserValidator creates a validator with pre-loaded existing data
func NewUserValidator(ctx context.Context, db *gorm.DB) (*UserValidator, error) {
	validator := &UserValidator{
		teamNames:     make(map[string]bool),
		emailsInBatch: make(map[string]bool),
	}

	var names []string
	if err := db.WithContext(ctx).Table("teams").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	for _, n := range names {
		validator.teamNames[n] = true
	}
	return validator, nil
}

// ValidateUserRecord validates a single user record from a seed file
func (v *UserValidator) ValidateUserRecord(record map[string]string, rowNum int) *common.RecordValidationResult {
	email := common.NormalizeEmail(record["email"])
	result := common.NewRecordResult(rowNum, email)

	if err := common.ValidateRequired("email", email); err != nil {
		result.AddError(err.Field, err.Message)
	} else if !common.ValidateEmail(email) {
		result.AddError("email", "Invalid email format")
	} else if v.emailsInBatch[email] {
		result.AddError("email", "Email appears more than once")
	}

	result.Add(common.ValidateRequired("name", record["name"]))

	if len(record["password"]) < MinAdminPasswordLength {
		result.AddError("password", "password must be at least "+strconv.Itoa(MinAdminPasswordLength)+" characters")
	}

	if role := strings.ToUpper(strings.TrimSpace(record["role"])); role != "" {
		result.Add(common.ValidateEnum("role", role, []string{string(auth.RoleUser), string(auth.RoleAdmin)}))
	}

	if team := strings.TrimSpace(record["team"]); team != "" && !v.teamNames[team] {
		result.AddError("team", "Unknown team "+team)
	}

	// Track this email for subsequent validations in same batch
	if result.Valid {
		v.emailsInBatch[email] = true
	}
	return result
}

// NormalizeUserRecord normalizes and fills defaults for a user record
func NormalizeUserRecord(record map[string]string) SeedRecord {
	role := auth.Role(strings.ToUpper(strings.TrimSpace(record["role"])))
	if role == "" {
		role = auth.RoleUser
	}
	return SeedRecord{
		Name:     strings.TrimSpace(record["name"]),
		Email:    common.NormalizeEmail(record["email"]),
		Password: record["password"],
		Role:     role,
		TeamName: strings.TrimSpace(record["team"]),
	}
}
