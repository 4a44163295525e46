package service

import (
	"context"

	"midgard-history/internal/domain"
	"midgard-history/internal/observability"
	"midgard-history/internal/storage"
)

// GetDepths returns depth buckets matching spec.
func (s *Service) GetDepths(ctx context.Context, spec storage.QuerySpec) ([]*domain.DepthRecord, error) {
	return cachedQuery(ctx, s, domain.FamilyDepth.String(), "", spec, func() ([]*domain.DepthRecord, error) {
		return s.stores.Depth.Query(ctx, spec)
	})
}

// GetSwaps returns swap buckets matching spec.
func (s *Service) GetSwaps(ctx context.Context, spec storage.QuerySpec) ([]*domain.SwapRecord, error) {
	return cachedQuery(ctx, s, domain.FamilySwaps.String(), "", spec, func() ([]*domain.SwapRecord, error) {
		return s.stores.Swaps.Query(ctx, spec)
	})
}

// GetEarnings returns earnings buckets matching spec with their pool breakdown.
func (s *Service) GetEarnings(ctx context.Context, spec storage.QuerySpec) ([]*domain.EarningsRecord, error) {
	return cachedQuery(ctx, s, domain.FamilyEarnings.String(), "", spec, func() ([]*domain.EarningsRecord, error) {
		return s.stores.Earnings.Query(ctx, spec)
	})
}

// GetRunePool returns RUNEPool buckets matching spec.
func (s *Service) GetRunePool(ctx context.Context, spec storage.QuerySpec) ([]*domain.RunePoolRecord, error) {
	return cachedQuery(ctx, s, domain.FamilyRunePool.String(), "", spec, func() ([]*domain.RunePoolRecord, error) {
		return s.stores.RunePool.Query(ctx, spec)
	})
}

// GetPoolActivity returns the depth and swap figures of one pool side by side.
func (s *Service) GetPoolActivity(ctx context.Context, poolID string, spec storage.QuerySpec) ([]*domain.PoolActivityRecord, error) {
	return cachedQuery(ctx, s, ScopeActivity, poolID, spec, func() ([]*domain.PoolActivityRecord, error) {
		return s.stores.Activity.Query(ctx, poolID, spec)
	})
}

// cachedQuery serves from the cache when possible. Cache failures fall through to storage.
// An invalid time filter is rejected before the cache is consulted.
func cachedQuery[T any](ctx context.Context, s *Service, scope, variant string, spec storage.QuerySpec, query func() ([]*T, error)) ([]*T, error) {
	if s.cache == nil {
		return query()
	}
	if _, _, err := spec.Bounds(); err != nil {
		return nil, err
	}

	var cached []*T
	key, hit, err := s.cache.Load(ctx, scope, variant, spec, &cached)
	switch {
	case err != nil:
		observability.RecordCacheLookup(scope, "error")
		s.logger.Warn("cache lookup failed", "scope", scope, "error", err)
		return query()
	case hit:
		observability.RecordCacheLookup(scope, "hit")
		if cached == nil {
			cached = []*T{}
		}
		return cached, nil
	}
	observability.RecordCacheLookup(scope, "miss")

	rows, err := query()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Store(ctx, key, rows); err != nil {
		s.logger.Warn("cache store failed", "scope", scope, "error", err)
	}
	return rows, nil
}
