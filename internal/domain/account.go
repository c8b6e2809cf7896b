package domain

import "time"

// CacheDomain names one family of cached upstream data. Each domain is backed by its own
// durable record set keyed by (tenant, user).
type CacheDomain string

const (
	DomainProfile             CacheDomain = "profile"
	DomainBillingSubscription CacheDomain = "billing-subscription"
	DomainBillingInvoices     CacheDomain = "billing-invoices"
)

// AllCacheDomains lists every domain the service caches.
var AllCacheDomains = []CacheDomain{DomainProfile, DomainBillingSubscription, DomainBillingInvoices}

// Valid reports whether d is one of the known cache domains.
func (d CacheDomain) Valid() bool {
	for _, known := range AllCacheDomains {
		if d == known {
			return true
		}
	}
	return false
}

func (d CacheDomain) String() string {
	return string(d)
}

// CacheRecord is the durable shadow of an upstream value for one (tenant, user) pair.
// A nil Payload means the value has never been fetched successfully.
type CacheRecord[T any] struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Payload   *T        `json:"payload"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the CRM snapshot of a user.
type Profile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	JobTitle  string    `json:"job_title,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Subscription is the payments-service snapshot of a tenant member's subscription.
type Subscription struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"` // e.g. "active", "trialing", "past_due", "canceled"
	PlanID            string    `json:"plan_id,omitempty"`
	PlanName          string    `json:"plan_name,omitempty"`
	Quantity          int       `json:"quantity,omitempty"`
	CurrentPeriodEnd  time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end,omitempty"`
	TrialEnd          time.Time `json:"trial_end,omitempty"`
}

// Invoice is a single payments-service invoice line.
type Invoice struct {
	ID         string    `json:"id"`
	Number     string    `json:"number,omitempty"`
	Status     string    `json:"status"`
	AmountDue  int64     `json:"amount_due"`  // minor units
	AmountPaid int64     `json:"amount_paid"` // minor units
	Currency   string    `json:"currency"`
	HostedURL  string    `json:"hosted_invoice_url,omitempty"`
	PDFURL     string    `json:"invoice_pdf,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
