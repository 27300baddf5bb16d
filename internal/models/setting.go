package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores a runtime key/value entry, e.g. SITE_NAME or NOTIFICATION_RETENTION_DAYS.
type Setting struct {
	Key       string         `gorm:"type:varchar(255);primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:json" json:"value"` // JSON-encoded value.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
