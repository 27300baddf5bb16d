package notifications

import (
	"context"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRetentionInterval = 6 * time.Hour
	defaultDeleteBatchSize   = 5000
	maxDeleteBatchesPerRun   = 2000
)

// RetentionCleaner periodically deletes read notifications older than
// NOTIFICATION_RETENTION_DAYS. Unread notifications are never pruned.
type RetentionCleaner struct {
	db        *gorm.DB
	interval  time.Duration
	batchSize int
	days      func() int
	now       func() time.Time
}

// NewRetentionCleaner builds a cleaner reading its window from the settings snapshot.
func NewRetentionCleaner(db *gorm.DB) *RetentionCleaner {
	if db == nil {
		return nil
	}
	return &RetentionCleaner{
		db:        db,
		interval:  defaultRetentionInterval,
		batchSize: defaultDeleteBatchSize,
		days:      settings.NotificationRetentionDays,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *RetentionCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	go c.run(ctx)
	log.Infof("notification retention cleaner started (interval=%s)", c.interval)
}

func (c *RetentionCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.CleanupOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// CleanupOnce runs one pruning pass and returns the number of deleted rows.
func (c *RetentionCleaner) CleanupOnce(ctx context.Context) int64 {
	if c == nil || c.db == nil {
		return 0
	}
	retentionDays := c.days()
	if retentionDays <= 0 {
		return 0
	}
	cutoff := c.now().AddDate(0, 0, -retentionDays)

	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("notification retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}
	if deletedTotal > 0 {
		log.Infof("notification retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), retentionDays)
	}
	return deletedTotal
}

func (c *RetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := c.batchSize
	if limit <= 0 {
		limit = defaultDeleteBatchSize
	}
	// Limited subquery keeps each statement short.
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM notifications
		WHERE id IN (
			SELECT id FROM notifications
			WHERE is_read = ? AND created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, true, cutoff, limit)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
