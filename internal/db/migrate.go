package db

import (
	"fmt"

	"github.com/bitescout/BiteScoutAPI/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Restaurant{},
		&models.RestaurantAccess{},
		&models.Notification{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
