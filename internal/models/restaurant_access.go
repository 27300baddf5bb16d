package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// AccessStatus is the lifecycle state of a restaurant access record.
type AccessStatus string

// Access record statuses.
const (
	// AccessStatusPending marks a request awaiting a manager decision.
	AccessStatusPending AccessStatus = "pending"
	// AccessStatusApproved marks an active grant.
	AccessStatusApproved AccessStatus = "approved"
	// AccessStatusSuspended marks a grant that is temporarily withdrawn.
	AccessStatusSuspended AccessStatus = "suspended"
	// AccessStatusInactive is the terminal soft-deleted state.
	AccessStatusInactive AccessStatus = "innactive"
)

// Valid reports whether s is one of the known statuses.
func (s AccessStatus) Valid() bool {
	switch s {
	case AccessStatusPending, AccessStatusApproved, AccessStatusSuspended, AccessStatusInactive:
		return true
	}
	return false
}

// Live reports whether a record in this status occupies its user/restaurant pair.
func (s AccessStatus) Live() bool {
	return s.Valid() && s != AccessStatusInactive
}

// Value implements driver.Valuer and refuses unknown statuses.
func (s AccessStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("models: invalid access status %q", string(s))
	}
	return string(s), nil
}

// Scan implements sql.Scanner and refuses unknown statuses.
func (s *AccessStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("models: scan access status: %w", err)
	}
	status := AccessStatus(raw)
	if !status.Valid() {
		return fmt.Errorf("models: invalid access status %q", raw)
	}
	*s = status
	return nil
}

// Role is a privilege level, used both globally on users and per restaurant.
type Role string

// Roles ordered from least to most privileged.
const (
	RoleGuest     Role = "guest"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleRoot      Role = "root"
)

var roleRank = map[Role]int{
	RoleGuest:     0,
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
	RoleRoot:      4,
}

// ParseRole validates a role name.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	_, ok := roleRank[role]
	return role, ok
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	return rank >= roleRank[other]
}

// Value implements driver.Valuer and refuses unknown roles.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("models: invalid role %q", string(r))
	}
	return string(r), nil
}

// Scan implements sql.Scanner and refuses unknown roles.
func (r *Role) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("models: scan role: %w", err)
	}
	role, ok := ParseRole(raw)
	if !ok {
		return fmt.Errorf("models: invalid role %q", raw)
	}
	*r = role
	return nil
}

// RestaurantAccess records a user's role on a restaurant and where the grant stands.
type RestaurantAccess struct {
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"` // UUIDv7.

	UserID       string `gorm:"type:varchar(36);not null;index" json:"userId"`       // Requesting user.
	RestaurantID string `gorm:"type:varchar(36);not null;index" json:"restaurantId"` // Target restaurant.

	Role   Role         `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	Status AccessStatus `gorm:"type:varchar(16);not null;index" json:"status"`

	// LiveKey is set while the record is non-terminal; the unique index keeps one live record per pair.
	LiveKey *string `gorm:"type:varchar(80);uniqueIndex:idx_restaurant_accesses_live_key" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

// AccessLiveKey builds the uniqueness key for a user/restaurant pair.
func AccessLiveKey(userID, restaurantID string) string {
	return userID + "|" + restaurantID
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("null value")
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
