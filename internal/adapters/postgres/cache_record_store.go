package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

const (
	findRecordSQL = `SELECT payload, updated_at FROM account_cache_records
WHERE domain = $1 AND tenant_id = $2 AND user_id = $3`

	createRecordSQL = `INSERT INTO account_cache_records (domain, tenant_id, user_id, payload, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (domain, tenant_id, user_id) DO NOTHING`

	upsertRecordSQL = `INSERT INTO account_cache_records (domain, tenant_id, user_id, payload, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (domain, tenant_id, user_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
)

// DB is the subset of pgxpool.Pool used by the store.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// CacheRecordStore implements domain.CacheRecordStore on the account_cache_records table.
// Payloads are stored as JSONB; a SQL NULL payload marks a degraded placeholder record.
type CacheRecordStore[T any] struct {
	db          DB
	logger      domain.Logger
	cacheDomain domain.CacheDomain
	now         func() time.Time
}

// NewCacheRecordStore creates a store for one cache domain.
func NewCacheRecordStore[T any](db DB, cacheDomain domain.CacheDomain, logger domain.Logger) *CacheRecordStore[T] {
	if db == nil {
		panic("db cannot be nil in NewCacheRecordStore")
	}
	if logger == nil {
		panic("logger cannot be nil in NewCacheRecordStore")
	}
	return &CacheRecordStore[T]{db: db, logger: logger, cacheDomain: cacheDomain, now: time.Now}
}

func (s *CacheRecordStore[T]) Find(ctx context.Context, tenantID, userID string) (*domain.CacheRecord[T], error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := s.db.QueryRow(ctx, findRecordSQL, string(s.cacheDomain), tenantID, userID).Scan(&raw, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug(ctx, "Cache record not found", "tenant_id", tenantID, "user_id", userID)
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to query cache record", "tenant_id", tenantID, "user_id", userID, "error", err.Error())
		return nil, fmt.Errorf("select %s cache record failed: %w", s.cacheDomain, err)
	}

	record := &domain.CacheRecord[T]{TenantID: tenantID, UserID: userID, UpdatedAt: updatedAt}
	if raw != nil {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.logger.Error(ctx, "Failed to unmarshal cache record payload", "tenant_id", tenantID, "user_id", userID, "error", err.Error())
			return nil, fmt.Errorf("failed to unmarshal %s cache record payload: %w", s.cacheDomain, err)
		}
		record.Payload = &payload
	}
	return record, nil
}

func (s *CacheRecordStore[T]) Create(ctx context.Context, tenantID, userID string, payload *T) (*domain.CacheRecord[T], error) {
	record, raw, err := s.encode(tenantID, userID, payload)
	if err != nil {
		return nil, err
	}
	tag, err := s.db.Exec(ctx, createRecordSQL, string(s.cacheDomain), tenantID, userID, raw, record.UpdatedAt)
	if err != nil {
		s.logger.Error(ctx, "Failed to insert cache record", "tenant_id", tenantID, "user_id", userID, "error", err.Error())
		return nil, fmt.Errorf("insert %s cache record failed: %w", s.cacheDomain, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrRecordExists
	}
	return record, nil
}

func (s *CacheRecordStore[T]) Upsert(ctx context.Context, tenantID, userID string, payload *T) (*domain.CacheRecord[T], error) {
	record, raw, err := s.encode(tenantID, userID, payload)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, upsertRecordSQL, string(s.cacheDomain), tenantID, userID, raw, record.UpdatedAt); err != nil {
		s.logger.Error(ctx, "Failed to upsert cache record", "tenant_id", tenantID, "user_id", userID, "error", err.Error())
		return nil, fmt.Errorf("upsert %s cache record failed: %w", s.cacheDomain, err)
	}
	return record, nil
}

// encode marshals payload for the JSONB column. A nil payload is written as SQL NULL.
func (s *CacheRecordStore[T]) encode(tenantID, userID string, payload *T) (*domain.CacheRecord[T], []byte, error) {
	// Postgres keeps microseconds.
	record := &domain.CacheRecord[T]{
		TenantID:  tenantID,
		UserID:    userID,
		Payload:   payload,
		UpdatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if payload == nil {
		return record, nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal %s cache record payload: %w", s.cacheDomain, err)
	}
	return record, raw, nil
}
