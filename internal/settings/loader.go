package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownKey is returned by Save for keys outside KnownKeys.
var ErrUnknownKey = errors.New("settings: unknown key")

// RefreshDBConfigSnapshot reloads all settings from the database and updates the in-memory snapshot.
//
// Call it at startup; until then every accessor returns its default.
func RefreshDBConfigSnapshot(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		if row.UpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = row.UpdatedAt
		}
	}

	StoreDBConfig(maxUpdatedAt, values)
	return nil
}

// Save upserts one setting and refreshes the snapshot.
func Save(ctx context.Context, db *gorm.DB, key string, value json.RawMessage) (models.Setting, error) {
	key = strings.TrimSpace(key)
	if _, ok := KnownKeys[key]; !ok {
		return models.Setting{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !json.Valid(value) {
		return models.Setting{}, fmt.Errorf("settings: value for %s is not valid JSON", key)
	}

	row := models.Setting{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now().UTC(),
	}
	if errSave := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; errSave != nil {
		return models.Setting{}, fmt.Errorf("settings: save %s: %w", key, errSave)
	}
	if errRefresh := RefreshDBConfigSnapshot(ctx, db); errRefresh != nil {
		return models.Setting{}, fmt.Errorf("settings: refresh: %w", errRefresh)
	}
	return row, nil
}
