package application

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// ErrRefreshPanicked is returned to every waiter of a computation that panicked.
var ErrRefreshPanicked = errors.New("refresh computation panicked")

// Coordinator collapses concurrent computations for the same key into one. The registry is
// process-local: each instance of the service suppresses duplicates only among its own callers.
//
// A key is deregistered under the registry lock before any new caller can look it up, so callers
// arriving after a computation settles always start a new one, whether it succeeded or failed.
type Coordinator struct {
	group    singleflight.Group
	inFlight atomic.Int64
	logger   domain.Logger
}

// NewCoordinator creates a Coordinator with an empty registry.
func NewCoordinator(logger domain.Logger) *Coordinator {
	if logger == nil {
		panic("logger is nil in NewCoordinator")
	}
	return &Coordinator{logger: logger}
}

// InFlight returns the number of computations currently registered.
func (c *Coordinator) InFlight() int64 {
	return c.inFlight.Load()
}

// RunSingleFlight runs compute under key unless a computation for key is already running, in which case
// it waits for that computation and returns its result. All concurrent callers observe the same value
// and error. shared reports whether the result was delivered to more than one caller.
func RunSingleFlight[R any](ctx context.Context, c *Coordinator, key string, compute func() (R, error)) (result R, shared bool, err error) {
	// The group runs the computation on the leader's goroutine, so only the leader sets this.
	leader := false
	v, err, shared := c.group.Do(key, func() (any, error) {
		leader = true
		c.inFlight.Add(1)
		metrics.IncrementSingleFlightInFlight()
		defer func() {
			c.inFlight.Add(-1)
			metrics.DecrementSingleFlightInFlight()
		}()
		return c.protect(ctx, key, func() (any, error) { return compute() })
	})
	if shared && !leader {
		metrics.IncrementSingleFlightShared()
	}
	if err != nil {
		return result, shared, err
	}
	if v != nil {
		result = v.(R)
	}
	return result, shared, nil
}

// protect turns a panic in fn into ErrRefreshPanicked so that followers are released with an error
// instead of the panic propagating through the registry.
func (c *Coordinator) protect(ctx context.Context, key string, fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(ctx, "Panic recovered in single-flight computation",
				"key", key,
				"panic_info", fmt.Sprintf("%v", r),
				"stacktrace", string(debug.Stack()),
			)
			v, err = nil, fmt.Errorf("%w: key %s: %v", ErrRefreshPanicked, key, r)
		}
	}()
	return fn()
}
