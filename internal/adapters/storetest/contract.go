// Package storetest holds the behavioural contract every domain.CacheRecordStore backend must satisfy.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// RunSubscriptionStoreContract exercises a subscription store. newStore must return an empty store;
// tenant ids are randomised per subtest so backends may share state between calls.
func RunSubscriptionStoreContract(t *testing.T, newStore func(t *testing.T) domain.CacheRecordStore[domain.Subscription]) {
	ctx := context.Background()
	tenant := func(*testing.T) string { return fmt.Sprintf("tenant-%d", time.Now().UnixNano()) }

	t.Run("find missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Find(ctx, tenant(t), "u1")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("upsert then find", func(t *testing.T) {
		store := newStore(t)
		tid := tenant(t)
		end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
		sub := &domain.Subscription{ID: "sub_1", Status: "active", PlanID: "pro", Quantity: 3, CurrentPeriodEnd: end}

		before := time.Now().Add(-time.Second)
		written, err := store.Upsert(ctx, tid, "u1", sub)
		require.NoError(t, err)
		assert.True(t, written.UpdatedAt.After(before))

		got, err := store.Find(ctx, tid, "u1")
		require.NoError(t, err)
		require.NotNil(t, got.Payload)
		assert.Equal(t, "active", got.Payload.Status)
		assert.Equal(t, 3, got.Payload.Quantity)
		assert.True(t, end.Equal(got.Payload.CurrentPeriodEnd))
		assert.WithinDuration(t, written.UpdatedAt, got.UpdatedAt, time.Millisecond)
		assert.Equal(t, tid, got.TenantID)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("upsert replaces payload", func(t *testing.T) {
		store := newStore(t)
		tid := tenant(t)
		_, err := store.Upsert(ctx, tid, "u1", &domain.Subscription{Status: "trialing"})
		require.NoError(t, err)
		_, err = store.Upsert(ctx, tid, "u1", &domain.Subscription{Status: "active"})
		require.NoError(t, err)

		got, err := store.Find(ctx, tid, "u1")
		require.NoError(t, err)
		assert.Equal(t, "active", got.Payload.Status)
	})

	t.Run("nil payload round trips", func(t *testing.T) {
		store := newStore(t)
		tid := tenant(t)
		_, err := store.Create(ctx, tid, "u1", nil)
		require.NoError(t, err)

		got, err := store.Find(ctx, tid, "u1")
		require.NoError(t, err)
		assert.Nil(t, got.Payload)
	})

	t.Run("create conflicts with existing record", func(t *testing.T) {
		store := newStore(t)
		tid := tenant(t)
		_, err := store.Upsert(ctx, tid, "u1", &domain.Subscription{Status: "active"})
		require.NoError(t, err)

		_, err = store.Create(ctx, tid, "u1", nil)
		assert.ErrorIs(t, err, domain.ErrRecordExists)

		got, err := store.Find(ctx, tid, "u1")
		require.NoError(t, err)
		require.NotNil(t, got.Payload, "create must not overwrite")
		assert.Equal(t, "active", got.Payload.Status)
	})

	t.Run("concurrent creates admit one winner", func(t *testing.T) {
		store := newStore(t)
		tid := tenant(t)
		var created atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Create(ctx, tid, "u1", nil)
				if err == nil {
					created.Add(1)
					return
				}
				assert.True(t, errors.Is(err, domain.ErrRecordExists), "unexpected error: %v", err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), created.Load())
	})

	t.Run("records are scoped by tenant and user", func(t *testing.T) {
		store := newStore(t)
		tid := tenant(t)
		_, err := store.Upsert(ctx, tid, "u1", &domain.Subscription{Status: "active"})
		require.NoError(t, err)

		_, err = store.Find(ctx, tid, "u2")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
		_, err = store.Find(ctx, tid+"-other", "u1")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("ids containing separators stay distinct", func(t *testing.T) {
		store := newStore(t)
		tid := tenant(t)
		_, err := store.Upsert(ctx, tid+":x", "u1", &domain.Subscription{Status: "active"})
		require.NoError(t, err)
		_, err = store.Upsert(ctx, tid, "x:u1", &domain.Subscription{Status: "canceled"})
		require.NoError(t, err)

		first, err := store.Find(ctx, tid+":x", "u1")
		require.NoError(t, err)
		assert.Equal(t, "active", first.Payload.Status)
		second, err := store.Find(ctx, tid, "x:u1")
		require.NoError(t, err)
		assert.Equal(t, "canceled", second.Payload.Status)
	})
}
