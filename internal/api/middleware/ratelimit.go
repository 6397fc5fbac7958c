package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/drishti-ai/drishti/internal/api/response"
	"github.com/drishti-ai/drishti/internal/cache"
	"github.com/drishti-ai/drishti/pkg/models"
)

// Requests per UTC day by tier. Zero means unlimited.
var tierLimits = map[string]int64{
	models.TierFree:       100,
	models.TierStartup:    5000,
	models.TierEnterprise: 0,
}

// RateLimit enforces per-key daily quotas via Redis counters.
type RateLimit struct {
	cache cache.Cache
	now   func() time.Time
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache) *RateLimit {
	return &RateLimit{cache: c, now: time.Now}
}

// Limit applies the daily quota for the tier set by auth middleware.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			// No key prefix means auth middleware didn't run; pass through
			next.ServeHTTP(w, r)
			return
		}

		tier, _ := getTier(r)
		limit := tierLimits[models.TierFree]
		if l, ok := tierLimits[tier]; ok {
			limit = l
		}
		if limit == 0 {
			next.ServeHTTP(w, r)
			return
		}

		now := rl.now().UTC()
		dayEnd := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		key := cache.RateLimitKey(prefix, now.Format("2006-01-02"))

		count, err := rl.cache.IncrWithExpiry(r.Context(), key, dayEnd.Sub(now))
		if err != nil {
			// On Redis error, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(dayEnd.Unix(), 10))

		if count > limit {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(dayEnd.Sub(now).Seconds()), 10))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Daily quota exceeded for this API key", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
