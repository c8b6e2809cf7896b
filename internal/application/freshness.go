package application

import (
	"time"

	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// IsStale reports whether record must be refreshed. A missing record is always stale; otherwise a record
// is stale once its age strictly exceeds ttl, so a record exactly ttl old is still served.
func IsStale[T any](record *domain.CacheRecord[T], ttl time.Duration, now time.Time) bool {
	if record == nil {
		return true
	}
	return now.Sub(record.UpdatedAt) > ttl
}

// EffectiveTTL returns the freshness window for record. Records that hold no payload (cold-start
// placeholders) are re-attempted after degradedTTL when that is shorter than the domain TTL.
func EffectiveTTL[T any](record *domain.CacheRecord[T], ttl, degradedTTL time.Duration) time.Duration {
	if record != nil && record.Payload == nil && degradedTTL > 0 && degradedTTL < ttl {
		return degradedTTL
	}
	return ttl
}
