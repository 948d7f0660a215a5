// Package utils provides utility functions for the application.
package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// ParseUUID parses a UUID string into a uuid.UUID
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// HashContent returns the lowercase hex SHA-256 digest of the given content.
// Used for signature idempotence checks, so it must stay stable.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
