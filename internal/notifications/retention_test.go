package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/db/dbtest"
	"github.com/bitescout/BiteScoutAPI/internal/models"
)

func TestRetentionCleanerDeletesOnlyOldReadNotifications(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -40)
	recent := now.AddDate(0, 0, -2)

	rows := []models.Notification{
		{ID: "old-read", UserID: "u1", Title: "t", IsRead: true, CreatedAt: old},
		{ID: "old-unread", UserID: "u1", Title: "t", IsRead: false, CreatedAt: old},
		{ID: "recent-read", UserID: "u1", Title: "t", IsRead: true, CreatedAt: recent},
	}
	if errCreate := conn.Create(&rows).Error; errCreate != nil {
		t.Fatalf("seed: %v", errCreate)
	}

	cleaner := NewRetentionCleaner(conn)
	cleaner.now = func() time.Time { return now }

	cleaner.days = func() int { return 0 }
	if got := cleaner.CleanupOnce(context.Background()); got != 0 {
		t.Fatalf("disabled cleaner deleted %d rows", got)
	}

	cleaner.days = func() int { return 30 }
	if got := cleaner.CleanupOnce(context.Background()); got != 1 {
		t.Fatalf("deleted = %d, want 1", got)
	}

	var remaining []string
	if errPluck := conn.Model(&models.Notification{}).Order("id ASC").Pluck("id", &remaining).Error; errPluck != nil {
		t.Fatalf("pluck: %v", errPluck)
	}
	if len(remaining) != 2 || remaining[0] != "old-unread" || remaining[1] != "recent-read" {
		t.Fatalf("remaining = %v", remaining)
	}
}
