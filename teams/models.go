package teams

import (
	"time"

	"gorm.io/gorm"
)

// UnassignedName is the team members fall back to when their team is deleted.
const UnassignedName = "Unassigned"

type TeamModel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (TeamModel) TableName() string {
	return "teams"
}

// TeamSummary is a team with its member count.
type TeamSummary struct {
	TeamModel
	MemberCount int64 `json:"memberCount"`
}

// AutoMigrate creates the teams table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TeamModel{})
}
