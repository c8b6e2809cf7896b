package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/account-cache-service/benchmarks/mocks"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/metrics"
)

func TestRunSingleFlightCollapsesConcurrentCalls(t *testing.T) {
	c := NewCoordinator(mocks.NewMockLogger())
	release := make(chan struct{})
	var calls atomic.Int32

	type result struct{ name string }
	compute := func() (*result, error) {
		calls.Add(1)
		<-release
		return &result{name: "shared"}, nil
	}

	const n = 20
	sharedBefore := testutil.ToFloat64(metrics.SingleFlightSharedTotal)
	results := make([]*result, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			r, _, err := RunSingleFlight(context.Background(), c, "k", compute)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}

	require.Eventually(t, func() bool { return c.InFlight() == 1 }, time.Second, time.Millisecond)
	// Give the other goroutines time to join the running computation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, int64(0), c.InFlight())
	assert.Equal(t, float64(n-1), testutil.ToFloat64(metrics.SingleFlightSharedTotal)-sharedBefore, "only followers count as shared")
}

func TestRunSingleFlightSharesErrors(t *testing.T) {
	c := NewCoordinator(mocks.NewMockLogger())
	boom := errors.New("boom")
	release := make(chan struct{})

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = RunSingleFlight(context.Background(), c, "k", func() (string, error) {
				<-release
				return "", boom
			})
		}(i)
	}
	require.Eventually(t, func() bool { return c.InFlight() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
}

func TestRunSingleFlightDeregistersAfterSettling(t *testing.T) {
	c := NewCoordinator(mocks.NewMockLogger())
	var calls int

	_, _, err := RunSingleFlight(context.Background(), c, "k", func() (int, error) {
		calls++
		return 0, errors.New("first fails")
	})
	require.Error(t, err)

	v, shared, err := RunSingleFlight(context.Background(), c, "k", func() (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, 42, v)

	v, _, err = RunSingleFlight(context.Background(), c, "k", func() (int, error) {
		calls++
		return 43, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 43, v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(0), c.InFlight())
}

func TestRunSingleFlightKeysAreIndependent(t *testing.T) {
	c := NewCoordinator(mocks.NewMockLogger())
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			v, _, err := RunSingleFlight(context.Background(), c, key, func() (string, error) {
				calls.Add(1)
				<-release
				return key, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, key, v)
		}(key)
	}
	require.Eventually(t, func() bool { return c.InFlight() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunSingleFlightRecoversPanics(t *testing.T) {
	logger := mocks.NewMockLogger()
	c := NewCoordinator(logger)

	_, _, err := RunSingleFlight(context.Background(), c, "k", func() (string, error) {
		panic("kaboom")
	})
	require.ErrorIs(t, err, ErrRefreshPanicked)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Len(t, logger.Entries("ERROR"), 1)
	assert.Equal(t, int64(0), c.InFlight())

	v, _, err := RunSingleFlight(context.Background(), c, "k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestRunSingleFlightNilResult(t *testing.T) {
	c := NewCoordinator(mocks.NewMockLogger())
	v, _, err := RunSingleFlight(context.Background(), c, "k", func() (*int, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, v)
}
