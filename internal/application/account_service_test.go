package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/account-cache-service/benchmarks/mocks"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

type serviceFixture struct {
	stores   CacheStores
	profiles *mocks.MockCacheRecordStore[domain.Profile]
	subs     *mocks.MockCacheRecordStore[domain.Subscription]
	invoices *mocks.MockCacheRecordStore[[]domain.Invoice]
	crm      *mocks.MockCRM
	payments *mocks.MockPayments
	logger   *mocks.MockLogger
	cfg      *mocks.MockConfigProvider
	svc      *AccountCacheService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		profiles: mocks.NewMockCacheRecordStore[domain.Profile](),
		subs:     mocks.NewMockCacheRecordStore[domain.Subscription](),
		invoices: mocks.NewMockCacheRecordStore[[]domain.Invoice](),
		crm:      &mocks.MockCRM{},
		payments: &mocks.MockPayments{},
		logger:   mocks.NewMockLogger(),
		cfg:      mocks.NewMockConfigProvider(),
	}
	f.stores = CacheStores{Profiles: f.profiles, Subscriptions: f.subs, Invoices: f.invoices}
	f.svc = NewAccountCacheService(f.logger, f.cfg, NewCoordinator(f.logger), f.stores, f.crm, f.payments)
	return f
}

func TestAccountCacheServiceGetProfile(t *testing.T) {
	f := newServiceFixture(t)
	f.crm.SetResult(&domain.Profile{UserID: "u1", Email: "a@example.com"}, nil)

	p, err := f.svc.GetProfile(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", p.Email)

	_, err = f.svc.GetProfile(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.crm.Calls.Load(), "second read is served from the cache")
}

func TestAccountCacheServiceGetProfileDegraded(t *testing.T) {
	f := newServiceFixture(t)
	f.crm.SetResult(nil, domain.ErrUpstreamUnavailable)

	p, err := f.svc.GetProfile(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.Profile{UserID: "u1"}, p)
}

func TestAccountCacheServiceGetSubscription(t *testing.T) {
	f := newServiceFixture(t)

	sub, err := f.svc.GetSubscription(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Nil(t, sub, "no subscription upstream")

	rec, ok := f.subs.Record("t1", "u1")
	require.True(t, ok)
	assert.Nil(t, rec.Payload)
}

func TestAccountCacheServiceGetInvoicesNeverNil(t *testing.T) {
	f := newServiceFixture(t)
	f.payments.SetInvoices(nil, domain.ErrUpstreamUnavailable)

	list, err := f.svc.GetInvoices(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	f2 := newServiceFixture(t)
	f2.payments.SetInvoices([]domain.Invoice{{ID: "in_1", AmountDue: 1200, Currency: "usd"}}, nil)
	list, err = f2.svc.GetInvoices(context.Background(), "t1", "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "in_1", list[0].ID)
}

func TestAccountCacheServiceDomainsAreIsolated(t *testing.T) {
	f := newServiceFixture(t)
	f.payments.SetSubscription(&domain.Subscription{ID: "sub_1", Status: "active"}, nil)
	f.payments.SetInvoices([]domain.Invoice{{ID: "in_1"}}, nil)

	_, err := f.svc.GetSubscription(context.Background(), "t1", "u1")
	require.NoError(t, err)
	_, err = f.svc.GetInvoices(context.Background(), "t1", "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.payments.SubscriptionCalls.Load())
	assert.Equal(t, int64(1), f.payments.InvoiceCalls.Load())
	assert.Equal(t, 1, f.subs.Len())
	assert.Equal(t, 1, f.invoices.Len())
	assert.Equal(t, 0, f.profiles.Len())
}

func TestAccountCacheServiceRefreshDomain(t *testing.T) {
	f := newServiceFixture(t)
	f.payments.SetSubscription(&domain.Subscription{ID: "sub_1", Status: "active"}, nil)
	ctx := context.Background()

	_, err := f.svc.GetSubscription(ctx, "t1", "u1")
	require.NoError(t, err)

	f.payments.SetSubscription(&domain.Subscription{ID: "sub_1", Status: "canceled"}, nil)
	outcome, err := f.svc.RefreshDomain(ctx, domain.DomainBillingSubscription, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshUpdated, outcome)
	assert.Len(t, f.logger.Entries("INFO"), 1)

	sub, err := f.svc.GetSubscription(ctx, "t1", "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, int64(2), f.payments.SubscriptionCalls.Load())
}

func TestAccountCacheServiceRefreshDomainReportsFallback(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.crm.SetResult(nil, domain.ErrUpstreamUnavailable)

	outcome, err := f.svc.RefreshDomain(ctx, domain.DomainProfile, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshPlaceholder, outcome)

	f.profiles.Seed("t1", "u1", &domain.Profile{UserID: "u1", Email: "old@example.com"}, time.Now())
	outcome, err = f.svc.RefreshDomain(ctx, domain.DomainProfile, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshStale, outcome)

	assert.Empty(t, f.logger.Entries("INFO"), "a fallback must not be reported as a refresh")
	var fallbacks int
	for _, e := range f.logger.Entries("WARN") {
		if e.Message == "Forced refresh could not reach upstream; fallback served" {
			fallbacks++
		}
	}
	assert.Equal(t, 2, fallbacks)
}

func TestAccountCacheServiceAppliesReloadedTTLs(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.crm.SetResult(&domain.Profile{UserID: "u1", Email: "new@example.com"}, nil)
	f.profiles.Seed("t1", "u1", &domain.Profile{UserID: "u1", Email: "old@example.com"}, time.Now().Add(-2*time.Minute))

	p, err := f.svc.GetProfile(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "old@example.com", p.Email, "two minutes is within the 300s profile ttl")
	assert.Equal(t, int64(0), f.crm.Calls.Load())

	reloaded := *f.cfg.Get()
	reloaded.Cache.ProfileTTLSeconds = 60
	f.cfg.UpdateConfig(&reloaded)

	p, err = f.svc.GetProfile(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", p.Email)
	assert.Equal(t, int64(1), f.crm.Calls.Load())
}

func TestAccountCacheServiceRefreshDomainValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.RefreshDomain(ctx, domain.CacheDomain("bogus"), "t1", "u1")
	assert.ErrorIs(t, err, ErrUnknownCacheDomain)

	_, err = f.svc.RefreshDomain(ctx, domain.DomainProfile, "", "u1")
	assert.Error(t, err)
}

func TestAccountCacheServiceSurfacesStoreErrors(t *testing.T) {
	f := newServiceFixture(t)
	storeErr := errors.New("redis unavailable")
	f.profiles.FindErr = storeErr

	_, err := f.svc.GetProfile(context.Background(), "t1", "u1")
	assert.ErrorIs(t, err, storeErr)
}
