package contextkeys

// Key is the type for context keys set by this service, distinct from plain strings to avoid collisions.
type Key string

const (
	// RequestIDKey is the context key for storing and retrieving a request ID.
	RequestIDKey Key = "request_id"

	// EventIDKey is the context key for the id of a refresh event being processed.
	EventIDKey Key = "event_id"

	// TenantIDKey is the context key for the tenant a request is scoped to.
	TenantIDKey Key = "tenant_id"

	// UserIDKey is the context key for the internal user id a request is scoped to.
	UserIDKey Key = "user_id"

	// CacheDomainKey is the context key for the cache domain being read or refreshed.
	CacheDomainKey Key = "cache_domain"
)

// String makes Key satisfy fmt.Stringer to help with debugging/logging of keys themselves.
func (c Key) String() string {
	return string(c)
}
