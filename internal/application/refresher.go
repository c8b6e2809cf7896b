package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
	"gitlab.com/timkado/api/account-cache-service/pkg/cachekeys"
)

// FetchFunc reads the authoritative value for (tenantID, userID) from an upstream service.
// The upstream client owns retries and timeouts; any error it returns triggers the fallback path.
type FetchFunc[T any] func(ctx context.Context, tenantID, userID string) (*T, error)

// RefresherConfig parameterises a Refresher for one cache domain.
type RefresherConfig[T any] struct {
	Domain      domain.CacheDomain
	Store       domain.CacheRecordStore[T]
	Fetch       FetchFunc[T]
	TTL         func() time.Duration // Read on every lookup so reloaded config applies
	DegradedTTL func() time.Duration // Freshness window for records without payload; nil or 0 uses TTL
	Placeholder func() *T            // Degraded value served when nothing was ever cached; nil serves nil
	Now         func() time.Time     // Defaults to time.Now
}

// FixedTTL returns a TTL source that never changes.
func FixedTTL(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

// refreshResult is what a flight hands to every caller waiting on it.
type refreshResult[T any] struct {
	payload *T
	outcome domain.RefreshOutcome
}

// Refresher is the read-through cache for one domain: it serves fresh records from the durable store,
// refreshes stale or missing ones through the single-flight coordinator, and degrades to the last stored
// value (or a placeholder) when the upstream service fails.
type Refresher[T any] struct {
	cfg         RefresherConfig[T]
	coordinator *Coordinator
	logger      domain.Logger
}

// NewRefresher creates a Refresher. It panics on missing collaborators since that is a wiring error.
func NewRefresher[T any](cfg RefresherConfig[T], coordinator *Coordinator, logger domain.Logger) *Refresher[T] {
	if cfg.Store == nil || cfg.Fetch == nil || cfg.TTL == nil {
		panic(fmt.Sprintf("store, fetch and ttl are required in NewRefresher for domain %s", cfg.Domain))
	}
	if coordinator == nil || logger == nil {
		panic("coordinator and logger are required in NewRefresher")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Placeholder == nil {
		cfg.Placeholder = func() *T { return nil }
	}
	if cfg.DegradedTTL == nil {
		cfg.DegradedTTL = FixedTTL(0)
	}
	return &Refresher[T]{
		cfg:         cfg,
		coordinator: coordinator,
		logger:      logger.With("domain", string(cfg.Domain)),
	}
}

// Domain returns the cache domain served by r.
func (r *Refresher[T]) Domain() domain.CacheDomain {
	return r.cfg.Domain
}

// GetOrRefresh returns the cached payload for (tenantID, userID), refreshing it first if it is stale or
// missing. Upstream failures are absorbed; only cache store failures are returned as errors.
func (r *Refresher[T]) GetOrRefresh(ctx context.Context, tenantID, userID string) (*T, error) {
	record, err := r.find(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	ttl := EffectiveTTL(record, r.cfg.TTL(), r.cfg.DegradedTTL())
	if !IsStale(record, ttl, r.cfg.Now()) {
		metrics.IncrementCacheLookup(string(r.cfg.Domain), metrics.LookupHit)
		r.logger.Debug(ctx, "Cache hit", "tenant_id", tenantID, "user_id", userID, "updated_at", record.UpdatedAt)
		if record.Payload == nil {
			return r.cfg.Placeholder(), nil
		}
		return record.Payload, nil
	}

	if record == nil {
		metrics.IncrementCacheLookup(string(r.cfg.Domain), metrics.LookupMiss)
	} else {
		metrics.IncrementCacheLookup(string(r.cfg.Domain), metrics.LookupStale)
	}
	res, err := r.refresh(ctx, tenantID, userID, record)
	return res.payload, err
}

// Refresh fetches the upstream value regardless of the cached record's age. It shares the single-flight
// key and fallback policy with GetOrRefresh, and reports whether the upstream value was stored or a
// fallback was served instead.
func (r *Refresher[T]) Refresh(ctx context.Context, tenantID, userID string) (*T, domain.RefreshOutcome, error) {
	record, err := r.find(ctx, tenantID, userID)
	if err != nil {
		return nil, "", err
	}
	res, err := r.refresh(ctx, tenantID, userID, record)
	return res.payload, res.outcome, err
}

func (r *Refresher[T]) find(ctx context.Context, tenantID, userID string) (*domain.CacheRecord[T], error) {
	record, err := r.cfg.Store.Find(ctx, tenantID, userID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error(ctx, "Failed to read cache record", "tenant_id", tenantID, "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to read %s cache record: %w", r.cfg.Domain, err)
	}
	return record, nil
}

// refresh runs the refresh for the key under the coordinator. The computation is detached from the
// caller's cancellation because its result is shared with every concurrent caller for the key.
func (r *Refresher[T]) refresh(ctx context.Context, tenantID, userID string, prior *domain.CacheRecord[T]) (refreshResult[T], error) {
	key := cachekeys.RefreshKey(string(r.cfg.Domain), tenantID, userID)
	flightCtx := context.WithoutCancel(ctx)

	res, shared, err := RunSingleFlight(flightCtx, r.coordinator, key, func() (refreshResult[T], error) {
		return r.refreshOnce(flightCtx, tenantID, userID, prior)
	})
	if shared {
		r.logger.Debug(ctx, "Refresh result shared between concurrent callers", "key", key)
	}
	if err != nil {
		return refreshResult[T]{}, err
	}
	return res, nil
}

func (r *Refresher[T]) refreshOnce(ctx context.Context, tenantID, userID string, prior *domain.CacheRecord[T]) (refreshResult[T], error) {
	fetched, fetchErr := r.cfg.Fetch(ctx, tenantID, userID)
	if fetchErr != nil {
		return r.degrade(ctx, tenantID, userID, prior, fetchErr)
	}

	record, err := r.cfg.Store.Upsert(ctx, tenantID, userID, fetched)
	if err != nil {
		metrics.IncrementCacheRefresh(string(r.cfg.Domain), metrics.RefreshStoreError)
		r.logger.Error(ctx, "Failed to persist refreshed cache record", "tenant_id", tenantID, "user_id", userID, "error", err)
		return refreshResult[T]{}, fmt.Errorf("failed to persist %s cache record: %w", r.cfg.Domain, err)
	}

	metrics.IncrementCacheRefresh(string(r.cfg.Domain), metrics.RefreshSuccess)
	r.logger.Debug(ctx, "Cache record refreshed", "tenant_id", tenantID, "user_id", userID, "updated_at", record.UpdatedAt)
	return r.served(record.Payload, domain.RefreshUpdated), nil
}

func (r *Refresher[T]) served(payload *T, outcome domain.RefreshOutcome) refreshResult[T] {
	if payload == nil {
		payload = r.cfg.Placeholder()
	}
	return refreshResult[T]{payload: payload, outcome: outcome}
}

// degrade serves the previously stored payload, or records an empty placeholder when nothing was stored.
// The stored record is never overwritten here.
func (r *Refresher[T]) degrade(ctx context.Context, tenantID, userID string, prior *domain.CacheRecord[T], cause error) (refreshResult[T], error) {
	if prior != nil {
		metrics.IncrementCacheRefresh(string(r.cfg.Domain), metrics.RefreshStaleFallback)
		r.logger.Warn(ctx, "Upstream refresh failed; serving stale cached value",
			"tenant_id", tenantID,
			"user_id", userID,
			"fallback", "stale",
			"age", r.cfg.Now().Sub(prior.UpdatedAt).String(),
			"error", cause,
		)
		return r.served(prior.Payload, domain.RefreshStale), nil
	}

	_, err := r.cfg.Store.Create(ctx, tenantID, userID, nil)
	if errors.Is(err, domain.ErrRecordExists) {
		// Another instance stored a record since our read; serve it if it has a payload.
		existing, findErr := r.find(ctx, tenantID, userID)
		if findErr != nil {
			metrics.IncrementCacheRefresh(string(r.cfg.Domain), metrics.RefreshStoreError)
			return refreshResult[T]{}, findErr
		}
		if existing != nil && existing.Payload != nil {
			metrics.IncrementCacheRefresh(string(r.cfg.Domain), metrics.RefreshStaleFallback)
			r.logger.Warn(ctx, "Upstream refresh failed; serving record written concurrently by another instance",
				"tenant_id", tenantID, "user_id", userID, "fallback", "stale", "error", cause)
			return r.served(existing.Payload, domain.RefreshStale), nil
		}
	} else if err != nil {
		metrics.IncrementCacheRefresh(string(r.cfg.Domain), metrics.RefreshStoreError)
		r.logger.Error(ctx, "Failed to create placeholder cache record", "tenant_id", tenantID, "user_id", userID, "error", err)
		return refreshResult[T]{}, fmt.Errorf("failed to create %s placeholder record: %w", r.cfg.Domain, err)
	}

	metrics.IncrementCacheRefresh(string(r.cfg.Domain), metrics.RefreshPlaceholder)
	r.logger.Warn(ctx, "Upstream refresh failed with nothing cached; serving placeholder",
		"tenant_id", tenantID,
		"user_id", userID,
		"fallback", "placeholder",
		"error", cause,
	)
	return r.served(nil, domain.RefreshPlaceholder), nil
}
