package models

import "time"

// User represents an end-user account stored in the database.
type User struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"` // UUIDv7.

	Username string `gorm:"type:text;not null;uniqueIndex" json:"username"` // Unique login name.
	Email    string `gorm:"type:text" json:"email"`
	Password string `gorm:"type:text;not null" json:"-"` // Hashed password.

	Role Role `gorm:"type:varchar(16);not null;default:'user'" json:"role"` // Global role; admin and root manage every restaurant.

	Disabled bool `gorm:"not null;default:false" json:"disabled"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
