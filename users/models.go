package users

import (
	"time"

	"mobility-challenge/auth"
	"mobility-challenge/teams"

	"gorm.io/gorm"
)

type UserModel struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Name         string           `gorm:"not null" json:"name"`
	Email        string           `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string           `gorm:"not null" json:"-"`
	Role         auth.Role        `gorm:"size:16;not null;default:USER" json:"role"`
	TeamID       *uint            `gorm:"index" json:"teamId"`
	Team         *teams.TeamModel `gorm:"foreignKey:TeamID;constraint:OnDelete:SET NULL" json:"team,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

func (UserModel) TableName() string {
	return "users"
}

// AutoMigrate creates the users table. The teams table must exist first.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}
