package domain

// RefreshRequest is published by the billing and CRM webhook handlers when upstream data for a
// (tenant, user) pair changed and the cached copy should be refreshed ahead of its TTL.
type RefreshRequest struct {
	EventID  string      `json:"event_id,omitempty"`
	Domain   CacheDomain `json:"domain"`
	TenantID string      `json:"tenant_id"`
	UserID   string      `json:"user_id"`
	Reason   string      `json:"reason,omitempty"` // e.g. "customer.subscription.updated"
}

// RefreshOutcome reports how a forced refresh settled.
type RefreshOutcome string

const (
	RefreshUpdated     RefreshOutcome = "updated"     // upstream value fetched and stored
	RefreshStale       RefreshOutcome = "stale"       // upstream failed, the stored value was kept
	RefreshPlaceholder RefreshOutcome = "placeholder" // upstream failed with nothing stored
)

// Degraded reports whether the upstream value could not be fetched.
func (o RefreshOutcome) Degraded() bool {
	return o != RefreshUpdated
}
