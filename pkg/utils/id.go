package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID returns a run ID with a timestamp prefix and a random suffix.
func GenerateRunID() string {
	return fmt.Sprintf("run-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// IsValidRunID reports whether id is usable as a run key: non-empty, bounded, and
// free of path separators so it can be embedded in URLs and store keys.
func IsValidRunID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		if r == '/' || r == '\\' || r == ' ' || r < 0x20 {
			return false
		}
	}
	return true
}
