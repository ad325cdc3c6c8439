package teams

import (
	"context"
	"strings"

	"mobility-challenge/common"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// TeamValidator validates team records for the seed loader. Teams are keyed
// by name, so a name that already exists is an update, not an error.
type TeamValidator struct {
	seenSlugs map[string]string
}

// NewTeamValidator creates a validator with pre-loaded existing data
func NewTeamValidator(ctx context.Context, db *gorm.DB) (*TeamValidator, error) {
	validator := &TeamValidator{seenSlugs: make(map[string]string)}

	var existing []TeamModel
	if err := db.WithContext(ctx).Select("name", "slug").Find(&existing).Error; err != nil {
		return nil, err
	}
	for _, t := range existing {
		validator.seenSlugs[t.Slug] = t.Name
	}
	return validator, nil
}

// ValidateTeamRecord validates a single team record
func (v *TeamValidator) ValidateTeamRecord(record map[string]string, rowNum int) *common.RecordValidationResult {
	name := strings.TrimSpace(record["name"])
	result := common.NewRecordResult(rowNum, name)

	if err := common.ValidateRequired("name", name); err != nil {
		result.AddError(err.Field, err.Message)
		return result
	}

	teamSlug := slug.Make(name)
	if teamSlug == "" {
		result.AddError("name", "name must contain letters or digits")
		return result
	}
	// two different names collapsing to one slug would break the unique index
	if owner, ok := v.seenSlugs[teamSlug]; ok && owner != name {
		result.AddError("name", "name collides with existing team "+owner)
	}

	if result.Valid {
		v.seenSlugs[teamSlug] = name
	}
	return result
}

// NormalizeTeamRecord builds the model for a validated record
func NormalizeTeamRecord(record map[string]string) TeamModel {
	name := strings.TrimSpace(record["name"])
	team := TeamModel{Name: name, Slug: slug.Make(name)}
	if desc := strings.TrimSpace(record["description"]); desc != "" {
		team.Description = &desc
	}
	return team
}
