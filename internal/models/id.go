package models

import "github.com/google/uuid"

// NewID returns a time-ordered UUIDv7 string, falling back to a random UUID.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
