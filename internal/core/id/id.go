// Package id generates entity identifiers.
// All IDs are UUIDv7: the leading timestamp bits make fresh IDs sort
// after old ones, which keeps PostgreSQL B-tree inserts append-mostly
// and lets entries order chronologically without an extra column.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type used by every entity.
type ID = uuid.UUID

// New generates a new UUIDv7.
func New() ID {
	v7, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to v4.
		return uuid.New()
	}
	return v7
}

// Parse converts a string into an ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts a string into an ID, panicking on malformed input.
// For constants and tests only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns the zero ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether id is the zero ID.
func IsNil(id ID) bool {
	return id == uuid.Nil
}
