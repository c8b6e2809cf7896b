package domain

import "context"

// ProfileFetcher reads profiles from the CRM service, the source of truth for user profile data.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (*Profile, error)
}

// SubscriptionFetcher reads subscriptions from the payments service.
// A nil subscription with a nil error means the user has no subscription.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, tenantID, userID string) (*Subscription, error)
}

// InvoiceFetcher reads invoices from the payments service.
type InvoiceFetcher interface {
	FetchInvoices(ctx context.Context, tenantID, userID string) ([]Invoice, error)
}
