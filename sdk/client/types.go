package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Role is a restaurant-scoped or global role.
type Role string

// Roles known to the server, lowest first.
const (
	RoleGuest     Role = "guest"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleRoot      Role = "root"
)

// AccessStatus is the lifecycle state of an access record.
type AccessStatus string

// Access record states. StatusInactive keeps the server's wire spelling.
const (
	StatusPending   AccessStatus = "pending"
	StatusApproved  AccessStatus = "approved"
	StatusSuspended AccessStatus = "suspended"
	StatusInactive  AccessStatus = "innactive"
)

// User is an account as returned by the API.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Restaurant is a directory entry.
type Restaurant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AccessRecord is a user's role on a restaurant and the state of that grant.
type AccessRecord struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	RestaurantID string       `json:"restaurantId"`
	Role         Role         `json:"role"`
	Status       AccessStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Notification is one inbox entry.
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	IsRead    bool            `json:"isRead"`
	ReadAt    *time.Time      `json:"readAt,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// PublicConfig is the unauthenticated site configuration.
type PublicConfig struct {
	SiteName string `json:"siteName"`
}

// Error codes returned in the error envelope.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeNotFound       = "RESOURCE_NOT_FOUND"
	CodeConflict       = "CONFLICT_ERROR"
	CodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int             `json:"-"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Timestamp  time.Time       `json:"timestamp"`
	Path       string          `json:"path"`
	Details    json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitescout: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func decodeAPIError(status int, payload []byte) error {
	apiErr := &APIError{StatusCode: status}
	if errUnmarshal := json.Unmarshal(payload, apiErr); errUnmarshal != nil || apiErr.Code == "" {
		apiErr.Code = codeForStatus(status)
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeAuthentication
	case http.StatusForbidden:
		return CodeAuthorization
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimit
	default:
		return CodeInternal
	}
}
