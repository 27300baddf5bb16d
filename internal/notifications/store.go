// Package notifications owns the per-user notification inbox.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Store persists notifications. Rows are only ever inserted or flipped to read.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore constructs a Store over a database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a Store bound to tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, now: s.now}
}

// Create inserts an unread notification for userID. data, when non-nil, is stored as JSON.
func (s *Store) Create(ctx context.Context, userID, title, message string, data any) (models.Notification, error) {
	userID = strings.TrimSpace(userID)
	title = strings.TrimSpace(title)
	if userID == "" {
		return models.Notification{}, apierror.Validation("recipient userId is required", nil)
	}
	if title == "" {
		return models.Notification{}, apierror.Validation("notification title is required", nil)
	}

	row := models.Notification{
		ID:        models.NewID(),
		UserID:    userID,
		Title:     title,
		Message:   strings.TrimSpace(message),
		IsRead:    false,
		CreatedAt: s.now(),
	}
	if data != nil {
		raw, errMarshal := json.Marshal(data)
		if errMarshal != nil {
			return models.Notification{}, apierror.Internal("encode notification data failed", errMarshal)
		}
		row.Data = datatypes.JSON(raw)
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return models.Notification{}, apierror.Internal("create notification failed", errCreate)
	}
	return row, nil
}

// ListOptions narrows ListByUser.
type ListOptions struct {
	Limit      int
	UnreadOnly bool
}

// ListByUser returns userID's notifications, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]models.Notification, error) {
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if opts.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	rows := make([]models.Notification, 0)
	if errFind := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		return nil, apierror.Internal("list notifications failed", errFind)
	}
	return rows, nil
}

// MarkRead flips one of userID's notifications to read. A notification that
// belongs to someone else is reported as not found.
func (s *Store) MarkRead(ctx context.Context, notificationID, userID string) (models.Notification, error) {
	var row models.Notification
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("id = ? AND user_id = ?", notificationID, userID).First(&row).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apierror.NotFound("notification not found")
			}
			return apierror.Internal("query notification failed", errFind)
		}
		if row.IsRead {
			return nil
		}
		readAt := s.now()
		if errUpdate := tx.Model(&models.Notification{}).
			Where("id = ? AND is_read = ?", row.ID, false).
			Updates(map[string]any{"is_read": true, "read_at": readAt}).Error; errUpdate != nil {
			return apierror.Internal("mark notification read failed", errUpdate)
		}
		row.IsRead = true
		row.ReadAt = &readAt
		return nil
	})
	if errTx != nil {
		return models.Notification{}, apierror.From(errTx)
	}
	return row, nil
}

// MarkAllRead flips every unread notification of userID and returns how many changed.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now()})
	if result.Error != nil {
		return 0, apierror.Internal("mark notifications read failed", result.Error)
	}
	return result.RowsAffected, nil
}

// UnreadCount returns the number of unread notifications for userID.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; errCount != nil {
		return 0, apierror.Internal("count notifications failed", errCount)
	}
	return count, nil
}
