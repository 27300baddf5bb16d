package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the public site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback site name.
	DefaultSiteName = "BiteScout"
	// NotificationRetentionDaysKey controls how long read notifications are kept.
	NotificationRetentionDaysKey = "NOTIFICATION_RETENTION_DAYS"
	// DefaultNotificationRetentionDays keeps notifications forever.
	DefaultNotificationRetentionDays = 0
)

// KnownKeys lists the keys the admin settings endpoint accepts.
var KnownKeys = map[string]struct{}{
	SiteNameKey:                  {},
	NotificationRetentionDaysKey: {},
}
