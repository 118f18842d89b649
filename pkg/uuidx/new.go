package uuidx

import "github.com/google/uuid"

// New generates a new UUID using the version 7 format and returns it.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new version 7 UUID and returns it as a string.
func NewString() string {
	return New().String()
}

// Key returns a storage key of the form "<prefix>:<uuid>". Version 7 ids keep
// keys with the same prefix sortable by creation time.
func Key(prefix string) string {
	return prefix + ":" + NewString()
}
