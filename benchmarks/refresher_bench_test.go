package benchmarks

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gitlab.com/timkado/api/account-cache-service/benchmarks/mocks"
	"gitlab.com/timkado/api/account-cache-service/internal/application"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

const (
	testTenantID = "bench-tenant"
	testUserID   = "bench-user"
)

// setupAccountBenchmark builds an AccountCacheService over in-memory stores and mock upstreams.
func setupAccountBenchmark(b *testing.B) (*application.AccountCacheService, *mocks.MockCacheRecordStore[domain.Profile], *mocks.MockCRM) {
	b.Helper()

	logger := mocks.NewMockLogger()
	profiles := mocks.NewMockCacheRecordStore[domain.Profile]()
	crm := &mocks.MockCRM{}
	crm.SetResult(&domain.Profile{UserID: testUserID, Email: "bench@example.com"}, nil)
	payments := &mocks.MockPayments{}

	svc := application.NewAccountCacheService(
		logger,
		mocks.NewMockConfigProvider(),
		application.NewCoordinator(logger),
		application.CacheStores{
			Profiles:      profiles,
			Subscriptions: mocks.NewMockCacheRecordStore[domain.Subscription](),
			Invoices:      mocks.NewMockCacheRecordStore[[]domain.Invoice](),
		},
		crm,
		payments,
	)
	return svc, profiles, crm
}

// BenchmarkGetProfile measures the read path with fresh records and with records that always need a refresh.
func BenchmarkGetProfile(b *testing.B) {
	ctx := context.Background()

	b.Run("FreshHit", func(b *testing.B) {
		svc, profiles, crm := setupAccountBenchmark(b)
		profiles.Seed(testTenantID, testUserID, &domain.Profile{UserID: testUserID}, time.Now())

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := svc.GetProfile(ctx, testTenantID, testUserID); err != nil {
				b.Fatalf("GetProfile failed: %v", err)
			}
		}
		b.StopTimer()
		if crm.Calls.Load() != 0 {
			b.Errorf("Expected no upstream calls on fresh hits, got %d", crm.Calls.Load())
		}
	})

	b.Run("ColdMissPerUser", func(b *testing.B) {
		svc, _, crm := setupAccountBenchmark(b)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := svc.GetProfile(ctx, testTenantID, fmt.Sprintf("user_%d", i)); err != nil {
				b.Fatalf("GetProfile failed: %v", err)
			}
		}
		b.StopTimer()
		b.Logf("Upstream calls: %d for %d lookups", crm.Calls.Load(), b.N)
	})

	b.Run("ConcurrentFreshHit", func(b *testing.B) {
		svc, profiles, _ := setupAccountBenchmark(b)
		profiles.Seed(testTenantID, testUserID, &domain.Profile{UserID: testUserID}, time.Now())

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := svc.GetProfile(ctx, testTenantID, testUserID); err != nil {
					b.Errorf("GetProfile failed: %v", err)
				}
			}
		})
	})
}

// BenchmarkStaleBurst measures concurrent readers of one stale key while the upstream is slow, which is
// where single-flight suppression pays off.
func BenchmarkStaleBurst(b *testing.B) {
	ctx := context.Background()
	svc, profiles, crm := setupAccountBenchmark(b)
	crm.Delay = time.Millisecond

	var lookups atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			// Keep the record stale so every lookup goes through the refresh path.
			profiles.Seed(testTenantID, testUserID, &domain.Profile{UserID: testUserID}, time.Now().Add(-time.Hour))
			if _, err := svc.GetProfile(ctx, testTenantID, testUserID); err != nil {
				b.Errorf("GetProfile failed: %v", err)
			}
			lookups.Add(1)
		}
	})
	b.StopTimer()
	b.Logf("Stale burst - Lookups: %d, Upstream calls: %d", lookups.Load(), crm.Calls.Load())
}
