package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

var (
	ErrUnknownCacheDomain = errors.New("unknown cache domain")
)

// CacheStores groups the durable record stores of every cache domain.
type CacheStores struct {
	Profiles      domain.CacheRecordStore[domain.Profile]
	Subscriptions domain.CacheRecordStore[domain.Subscription]
	Invoices      domain.CacheRecordStore[[]domain.Invoice]
}

// PaymentsFetcher is the payments-service view needed by the billing domains.
type PaymentsFetcher interface {
	domain.SubscriptionFetcher
	domain.InvoiceFetcher
}

// AccountCacheService is what request handlers call to read CRM and billing data. Upstream outages
// never surface from it: callers get the last known value or a degraded default. Returned errors are
// cache store failures.
type AccountCacheService struct {
	logger        domain.Logger
	profiles      *Refresher[domain.Profile]
	subscriptions *Refresher[domain.Subscription]
	invoices      *Refresher[[]domain.Invoice]
}

// NewAccountCacheService wires one Refresher per cache domain, with TTLs taken from the cache config.
func NewAccountCacheService(
	logger domain.Logger,
	cfgProvider config.Provider,
	coordinator *Coordinator,
	stores CacheStores,
	crm domain.ProfileFetcher,
	payments PaymentsFetcher,
) *AccountCacheService {
	if logger == nil {
		panic("logger is nil in NewAccountCacheService")
	}
	if cfgProvider == nil {
		panic("config provider is nil in NewAccountCacheService")
	}
	// TTLs are read from the provider on every lookup so a config reload takes effect without a restart.
	profileTTL := func() time.Duration { return cfgProvider.Get().Cache.ProfileTTL() }
	billingTTL := func() time.Duration { return cfgProvider.Get().Cache.BillingTTL() }
	degradedTTL := func() time.Duration { return cfgProvider.Get().Cache.DegradedTTL() }

	profiles := NewRefresher(RefresherConfig[domain.Profile]{
		Domain: domain.DomainProfile,
		Store:  stores.Profiles,
		Fetch: func(ctx context.Context, _, userID string) (*domain.Profile, error) {
			return crm.FetchProfile(ctx, userID)
		},
		TTL:         profileTTL,
		DegradedTTL: degradedTTL,
	}, coordinator, logger)

	subscriptions := NewRefresher(RefresherConfig[domain.Subscription]{
		Domain:      domain.DomainBillingSubscription,
		Store:       stores.Subscriptions,
		Fetch:       payments.FetchSubscription,
		TTL:         billingTTL,
		DegradedTTL: degradedTTL,
	}, coordinator, logger)

	invoices := NewRefresher(RefresherConfig[[]domain.Invoice]{
		Domain: domain.DomainBillingInvoices,
		Store:  stores.Invoices,
		Fetch: func(ctx context.Context, tenantID, userID string) (*[]domain.Invoice, error) {
			list, err := payments.FetchInvoices(ctx, tenantID, userID)
			if err != nil {
				return nil, err
			}
			if list == nil {
				list = []domain.Invoice{}
			}
			return &list, nil
		},
		TTL:         billingTTL,
		DegradedTTL: degradedTTL,
		Placeholder: func() *[]domain.Invoice {
			empty := []domain.Invoice{}
			return &empty
		},
	}, coordinator, logger)

	return &AccountCacheService{
		logger:        logger,
		profiles:      profiles,
		subscriptions: subscriptions,
		invoices:      invoices,
	}
}

// GetProfile returns the user's CRM profile. On total failure it returns an empty profile carrying only
// the user id.
func (s *AccountCacheService) GetProfile(ctx context.Context, tenantID, userID string) (domain.Profile, error) {
	p, err := s.profiles.GetOrRefresh(ctx, tenantID, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	if p == nil {
		return domain.Profile{UserID: userID}, nil
	}
	return *p, nil
}

// GetSubscription returns the user's subscription in the tenant, or nil when there is none or it has
// never been fetched successfully.
func (s *AccountCacheService) GetSubscription(ctx context.Context, tenantID, userID string) (*domain.Subscription, error) {
	return s.subscriptions.GetOrRefresh(ctx, tenantID, userID)
}

// GetInvoices returns the user's invoices in the tenant. The result is never nil.
func (s *AccountCacheService) GetInvoices(ctx context.Context, tenantID, userID string) ([]domain.Invoice, error) {
	list, err := s.invoices.GetOrRefresh(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil || *list == nil {
		return []domain.Invoice{}, nil
	}
	return *list, nil
}

// RefreshDomain forces a refresh of one domain's record, bypassing the freshness check. It is driven by
// upstream change notifications. The outcome tells whether the upstream value was stored or, when the
// upstream failed, which fallback was served.
func (s *AccountCacheService) RefreshDomain(ctx context.Context, cacheDomain domain.CacheDomain, tenantID, userID string) (domain.RefreshOutcome, error) {
	if tenantID == "" || userID == "" {
		return "", fmt.Errorf("tenant id and user id are required to refresh %s", cacheDomain)
	}
	var (
		outcome domain.RefreshOutcome
		err     error
	)
	switch cacheDomain {
	case domain.DomainProfile:
		_, outcome, err = s.profiles.Refresh(ctx, tenantID, userID)
	case domain.DomainBillingSubscription:
		_, outcome, err = s.subscriptions.Refresh(ctx, tenantID, userID)
	case domain.DomainBillingInvoices:
		_, outcome, err = s.invoices.Refresh(ctx, tenantID, userID)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCacheDomain, cacheDomain)
	}
	if err != nil {
		return "", err
	}
	if outcome.Degraded() {
		s.logger.Warn(ctx, "Forced refresh could not reach upstream; fallback served",
			"domain", string(cacheDomain), "tenant_id", tenantID, "user_id", userID, "outcome", string(outcome))
		return outcome, nil
	}
	s.logger.Info(ctx, "Cache record refreshed on request", "domain", string(cacheDomain), "tenant_id", tenantID, "user_id", userID)
	return outcome, nil
}
