//go:build integration

package redis

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/account-cache-service/benchmarks/mocks"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/storetest"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

func TestCacheRecordStoreContract(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, Ping(context.Background(), client))

	storetest.RunSubscriptionStoreContract(t, func(t *testing.T) domain.CacheRecordStore[domain.Subscription] {
		return NewCacheRecordStore[domain.Subscription](client, domain.DomainBillingSubscription, mocks.NewMockLogger())
	})
}
