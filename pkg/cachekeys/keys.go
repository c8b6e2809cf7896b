package cachekeys

import (
	"fmt"
	"net/url"
)

// part escapes one key component so that ids containing the ':' separator cannot collide with
// another (tenant, user) pair.
func part(s string) string {
	return url.QueryEscape(s)
}

// RefreshKey generates the single-flight key for refreshing one domain's record of a (tenant, user) pair.
func RefreshKey(domain, tenantID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", part(domain), part(tenantID), part(userID))
}

// RecordKey generates the Redis key holding the durable cache record for a (tenant, user) pair.
func RecordKey(domain, tenantID, userID string) string {
	return fmt.Sprintf("account_cache:%s:%s:%s", part(domain), part(tenantID), part(userID))
}

// RefreshSubject generates the NATS subject on which refresh requests for a domain are published.
func RefreshSubject(prefix, domain string) string {
	return fmt.Sprintf("%s.%s", prefix, domain)
}
