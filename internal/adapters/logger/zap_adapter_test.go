package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gitlab.com/timkado/api/account-cache-service/pkg/contextkeys"
)

func TestZapAdapterCopiesContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))

	ctx := context.WithValue(context.Background(), contextkeys.RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, contextkeys.TenantIDKey, "tenant-1")
	l.Warn(ctx, "stale fallback", "domain", "profile", "error", errors.New("boom"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, "profile", fields["domain"])
	assert.Equal(t, "boom", fields["error"])
	assert.NotContains(t, fields, "user_id")
}

func TestZapAdapterHandlesMalformedPairs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core))

	l.Info(context.Background(), "odd", 42, "value", "dangling")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "value", fields["invalid_key_0"])
	assert.Equal(t, "dangling", fields["orphan_field_2"])
}

func TestZapAdapterWithAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core)).With("component", "refresher")

	l.Debug(context.Background(), "suppressed")
	l.Info(context.Background(), "kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "refresher", logs.All()[0].ContextMap()["component"])
}
