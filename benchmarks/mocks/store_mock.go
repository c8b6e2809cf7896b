package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/timkado/api/account-cache-service/internal/domain"
	"gitlab.com/timkado/api/account-cache-service/pkg/cachekeys"
)

// MockCacheRecordStore is an in-memory domain.CacheRecordStore.
type MockCacheRecordStore[T any] struct {
	mu      sync.Mutex
	records map[string]domain.CacheRecord[T]

	// Now stamps UpdatedAt on writes; defaults to time.Now.
	Now func() time.Time

	FindErr   error
	CreateErr error
	UpsertErr error

	// OnCreate runs before Create checks for an existing record.
	OnCreate func()

	FindCalls   atomic.Int64
	CreateCalls atomic.Int64
	UpsertCalls atomic.Int64
}

// NewMockCacheRecordStore creates an empty store.
func NewMockCacheRecordStore[T any]() *MockCacheRecordStore[T] {
	return &MockCacheRecordStore[T]{
		records: make(map[string]domain.CacheRecord[T]),
		Now:     time.Now,
	}
}

func storeKey(tenantID, userID string) string {
	return cachekeys.RecordKey("", tenantID, userID)
}

// Seed stores a record with an explicit UpdatedAt, bypassing the counters.
func (s *MockCacheRecordStore[T]) Seed(tenantID, userID string, payload *T, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[storeKey(tenantID, userID)] = domain.CacheRecord[T]{
		TenantID:  tenantID,
		UserID:    userID,
		Payload:   payload,
		UpdatedAt: updatedAt,
	}
}

// Record returns the stored record without touching the counters.
func (s *MockCacheRecordStore[T]) Record(tenantID, userID string) (domain.CacheRecord[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[storeKey(tenantID, userID)]
	return rec, ok
}

// Len returns the number of stored records.
func (s *MockCacheRecordStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MockCacheRecordStore[T]) Find(ctx context.Context, tenantID, userID string) (*domain.CacheRecord[T], error) {
	s.FindCalls.Add(1)
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[storeKey(tenantID, userID)]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &rec, nil
}

func (s *MockCacheRecordStore[T]) Create(ctx context.Context, tenantID, userID string, payload *T) (*domain.CacheRecord[T], error) {
	s.CreateCalls.Add(1)
	if s.OnCreate != nil {
		s.OnCreate()
	}
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(tenantID, userID)
	if _, ok := s.records[key]; ok {
		return nil, domain.ErrRecordExists
	}
	rec := domain.CacheRecord[T]{TenantID: tenantID, UserID: userID, Payload: payload, UpdatedAt: s.Now()}
	s.records[key] = rec
	return &rec, nil
}

func (s *MockCacheRecordStore[T]) Upsert(ctx context.Context, tenantID, userID string, payload *T) (*domain.CacheRecord[T], error) {
	s.UpsertCalls.Add(1)
	if s.UpsertErr != nil {
		return nil, s.UpsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := domain.CacheRecord[T]{TenantID: tenantID, UserID: userID, Payload: payload, UpdatedAt: s.Now()}
	s.records[storeKey(tenantID, userID)] = rec
	return &rec, nil
}
