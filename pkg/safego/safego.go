package safego

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// ErrPanicked wraps a panic recovered by Run.
var ErrPanicked = errors.New("recovered panic")

// Execute runs the given function in a new goroutine.
// It recovers from any panics within the goroutine, logs them with the provided logger and a descriptive name,
// and includes a stack trace.
func Execute(ctx context.Context, logger domain.Logger, goroutineName string, fn func()) {
	go func() {
		_ = Run(ctx, logger, goroutineName, func() error {
			fn()
			return nil
		})
	}()
}

// Run calls fn on the current goroutine and converts a panic into an error wrapping ErrPanicked.
func Run(ctx context.Context, logger domain.Logger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			// The original context may already be done; logging must still work.
			logCtx := ctx
			if ctx.Err() != nil {
				logCtx = context.Background()
			}
			logger.Error(logCtx, fmt.Sprintf("Panic recovered in goroutine: %s", name),
				"panic_info", fmt.Sprintf("%v", r),
				"stacktrace", string(debug.Stack()),
			)
			err = fmt.Errorf("%w in %s: %v", ErrPanicked, name, r)
		}
	}()
	return fn()
}
