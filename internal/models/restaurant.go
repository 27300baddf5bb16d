package models

import "time"

// Restaurant is the resource whose management rights are brokered by access records.
type Restaurant struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	Name    string `gorm:"type:text;not null" json:"name"`
	OwnerID string `gorm:"type:varchar(36);not null;index" json:"ownerId"` // Verified owner.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
