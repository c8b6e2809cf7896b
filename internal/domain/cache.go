package domain

import (
	"context"
)

// CacheRecordStore is the durable, per-domain record store behind the read-through cache.
// At most one record exists per (tenantID, userID); every write stamps UpdatedAt with the write time.
type CacheRecordStore[T any] interface {
	// Find returns the record for (tenantID, userID), or ErrRecordNotFound if none exists.
	Find(ctx context.Context, tenantID, userID string) (*CacheRecord[T], error)

	// Create inserts a new record. It returns ErrRecordExists if a record is already present.
	Create(ctx context.Context, tenantID, userID string, payload *T) (*CacheRecord[T], error)

	// Upsert creates or replaces the record's payload.
	Upsert(ctx context.Context, tenantID, userID string, payload *T) (*CacheRecord[T], error)
}
