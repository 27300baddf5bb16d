// Package settings keeps an in-memory snapshot of DB-backed runtime settings.
package settings

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// dbConfigSnapshot holds the in-memory DB config values.
type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var globalDBConfig atomic.Value // stores dbConfigSnapshot

func init() {
	globalDBConfig.Store(dbConfigSnapshot{values: map[string]json.RawMessage{}})
}

// StoreDBConfig replaces the in-memory snapshot of DB-backed settings.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if v == nil {
			next[key] = nil
			continue
		}
		next[key] = append(json.RawMessage(nil), v...)
	}
	globalDBConfig.Store(dbConfigSnapshot{
		updatedAt: updatedAt.UTC(),
		values:    next,
	})
}

// DBConfigUpdatedAt returns the last update timestamp for DB config.
func DBConfigUpdatedAt() time.Time {
	return loadDBConfig().updatedAt
}

// DBConfigValue returns a copy of the raw config value for a key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := loadDBConfig().values[key]
	if !ok {
		return nil, false
	}
	if val == nil {
		return nil, true
	}
	return append(json.RawMessage(nil), val...), true
}

// String returns a string setting, or def when unset or not a string.
func String(key, def string) string {
	raw, ok := DBConfigValue(key)
	if !ok {
		return def
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal != nil {
		return def
	}
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// Int returns an integer setting, or def when unset or unparsable.
// Numbers, numeric strings and {"value": n} wrappers are accepted.
func Int(key string, def int) int {
	raw, ok := DBConfigValue(key)
	if !ok {
		return def
	}
	if n, okParse := parseInt(raw); okParse {
		return n
	}
	return def
}

// SiteName returns the configured site name.
func SiteName() string {
	return String(SiteNameKey, DefaultSiteName)
}

// NotificationRetentionDays returns the retention window; 0 or less disables pruning.
func NotificationRetentionDays() int {
	return Int(NotificationRetentionDaysKey, DefaultNotificationRetentionDays)
}

func parseInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.Atoi(strings.TrimSpace(s)); errParse == nil {
			return parsed, true
		}
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return parseInt(wrapper.Value)
	}
	return 0, false
}

func loadDBConfig() dbConfigSnapshot {
	cfg, ok := globalDBConfig.Load().(dbConfigSnapshot)
	if !ok {
		return dbConfigSnapshot{values: map[string]json.RawMessage{}}
	}
	if cfg.values == nil {
		return dbConfigSnapshot{updatedAt: cfg.updatedAt, values: map[string]json.RawMessage{}}
	}
	return cfg
}
