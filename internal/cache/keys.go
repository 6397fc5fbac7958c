package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RequestKey(id uuid.UUID) string {
	return fmt.Sprintf("analysis:req:%s", id)
}

func StatusKey(id uuid.UUID) string {
	return fmt.Sprintf("analysis:status:%s", id)
}

func ResultKey(id uuid.UUID) string {
	return fmt.Sprintf("analysis:result:%s", id)
}

// RateLimitKey buckets per key prefix per UTC day.
func RateLimitKey(keyPrefix, day string) string {
	return fmt.Sprintf("ratelimit:%s:%s", keyPrefix, day)
}
