package activities

import (
	"time"

	"mobility-challenge/users"

	"gorm.io/gorm"
)

type Type string

const (
	Velo   Type = "VELO"
	Marche Type = "MARCHE"
)

// StepsPerKm converts walking steps to kilometres.
const StepsPerKm = 1500

// Types lists the accepted activity types.
var Types = []string{string(Velo), string(Marche)}

// ActivityModel is one daily declaration. Date holds the calendar day as
// YYYY-MM-DD; (UserID, Date) is unique.
type ActivityModel struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"not null;uniqueIndex:idx_activity_user_day" json:"userId"`
	Date       string           `gorm:"size:10;not null;uniqueIndex:idx_activity_user_day;index" json:"date"`
	Type       Type             `gorm:"size:10;not null" json:"type"`
	DistanceKm float64          `gorm:"not null" json:"distanceKm"`
	Steps      *int             `json:"steps"`
	User       *users.UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Owner      *Owner           `gorm:"-" json:"user,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func (ActivityModel) TableName() string {
	return "activities"
}

// Owner is the user summary attached to activities in responses.
type Owner struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	TeamID *uint  `json:"teamId"`
}

// AutoMigrate creates the activities table. The users table must exist first.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ActivityModel{})
}
