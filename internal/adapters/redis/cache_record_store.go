package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
	"gitlab.com/timkado/api/account-cache-service/pkg/cachekeys"
)

// storedRecord is the JSON document kept under each record key.
type storedRecord[T any] struct {
	Payload   *T        `json:"payload"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheRecordStore implements domain.CacheRecordStore on Redis. Keys carry no expiry: freshness is
// decided by the application from UpdatedAt, and stale records are kept as fallback values.
type CacheRecordStore[T any] struct {
	redisClient redis.Cmdable
	logger      domain.Logger
	cacheDomain domain.CacheDomain
	now         func() time.Time
}

// NewCacheRecordStore creates a store for one cache domain.
func NewCacheRecordStore[T any](redisClient redis.Cmdable, cacheDomain domain.CacheDomain, logger domain.Logger) *CacheRecordStore[T] {
	if redisClient == nil {
		panic("redisClient cannot be nil in NewCacheRecordStore")
	}
	if logger == nil {
		panic("logger cannot be nil in NewCacheRecordStore")
	}
	return &CacheRecordStore[T]{
		redisClient: redisClient,
		logger:      logger,
		cacheDomain: cacheDomain,
		now:         time.Now,
	}
}

func (s *CacheRecordStore[T]) key(tenantID, userID string) string {
	return cachekeys.RecordKey(string(s.cacheDomain), tenantID, userID)
}

// Find retrieves the record, returning domain.ErrRecordNotFound when the key is absent.
func (s *CacheRecordStore[T]) Find(ctx context.Context, tenantID, userID string) (*domain.CacheRecord[T], error) {
	key := s.key(tenantID, userID)
	val, err := s.redisClient.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug(ctx, "Cache record not found", "key", key)
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to get cache record from Redis", "key", key, "error", err.Error())
		return nil, fmt.Errorf("redis GET for cache record key '%s' failed: %w", key, err)
	}

	var doc storedRecord[T]
	if err = json.Unmarshal(val, &doc); err != nil {
		s.logger.Error(ctx, "Failed to unmarshal cache record", "key", key, "error", err.Error())
		return nil, fmt.Errorf("failed to unmarshal cache record for key '%s': %w", key, err)
	}

	s.logger.Debug(ctx, "Cache record found", "key", key, "updated_at", doc.UpdatedAt)
	return &domain.CacheRecord[T]{
		TenantID:  tenantID,
		UserID:    userID,
		Payload:   doc.Payload,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Create stores a new record with SETNX, returning domain.ErrRecordExists if the key is taken.
func (s *CacheRecordStore[T]) Create(ctx context.Context, tenantID, userID string, payload *T) (*domain.CacheRecord[T], error) {
	key := s.key(tenantID, userID)
	record, data, err := s.encode(tenantID, userID, payload)
	if err != nil {
		s.logger.Error(ctx, "Failed to marshal cache record", "key", key, "error", err.Error())
		return nil, fmt.Errorf("failed to marshal cache record for key '%s': %w", key, err)
	}

	created, err := s.redisClient.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to create cache record in Redis", "key", key, "error", err.Error())
		return nil, fmt.Errorf("redis SETNX for cache record key '%s' failed: %w", key, err)
	}
	if !created {
		s.logger.Debug(ctx, "Cache record already exists", "key", key)
		return nil, domain.ErrRecordExists
	}

	s.logger.Debug(ctx, "Cache record created", "key", key, "has_payload", payload != nil)
	return record, nil
}

// Upsert replaces the record unconditionally.
func (s *CacheRecordStore[T]) Upsert(ctx context.Context, tenantID, userID string, payload *T) (*domain.CacheRecord[T], error) {
	key := s.key(tenantID, userID)
	record, data, err := s.encode(tenantID, userID, payload)
	if err != nil {
		s.logger.Error(ctx, "Failed to marshal cache record", "key", key, "error", err.Error())
		return nil, fmt.Errorf("failed to marshal cache record for key '%s': %w", key, err)
	}

	if err = s.redisClient.Set(ctx, key, data, 0).Err(); err != nil {
		s.logger.Error(ctx, "Failed to set cache record in Redis", "key", key, "error", err.Error())
		return nil, fmt.Errorf("redis SET for cache record key '%s' failed: %w", key, err)
	}

	s.logger.Debug(ctx, "Cache record stored", "key", key, "has_payload", payload != nil)
	return record, nil
}

func (s *CacheRecordStore[T]) encode(tenantID, userID string, payload *T) (*domain.CacheRecord[T], []byte, error) {
	// Round(0) strips the monotonic clock reading, which JSON does not carry.
	updatedAt := s.now().UTC().Round(0)
	data, err := json.Marshal(storedRecord[T]{Payload: payload, UpdatedAt: updatedAt})
	if err != nil {
		return nil, nil, err
	}
	return &domain.CacheRecord[T]{
		TenantID:  tenantID,
		UserID:    userID,
		Payload:   payload,
		UpdatedAt: updatedAt,
	}, data, nil
}

// Ping reports whether Redis is reachable, for readiness checks.
func Ping(ctx context.Context, redisClient redis.Cmdable) error {
	return redisClient.Ping(ctx).Err()
}
