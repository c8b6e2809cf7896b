package safego

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/account-cache-service/benchmarks/mocks"
)

func TestRunConvertsPanic(t *testing.T) {
	logger := mocks.NewMockLogger()
	err := Run(context.Background(), logger, "worker", func() error { panic("boom") })
	require.ErrorIs(t, err, ErrPanicked)
	assert.Contains(t, err.Error(), "worker")

	entries := logger.Entries("ERROR")
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].Fields["panic_info"])
}

func TestRunPassesThroughErrors(t *testing.T) {
	want := errors.New("plain")
	assert.Same(t, want, Run(context.Background(), mocks.NewMockLogger(), "worker", func() error { return want }))
}

func TestExecuteRecovers(t *testing.T) {
	logger := mocks.NewMockLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Execute(ctx, logger, "bg", func() { panic("late") })
	assert.Eventually(t, func() bool { return len(logger.Entries("ERROR")) == 1 }, time.Second, 5*time.Millisecond)
}
