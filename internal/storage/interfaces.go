package storage

import (
	"context"

	"midgard-history/internal/domain"
)

// DepthStore provides access to depth_history storage.
type DepthStore interface {
	// InsertBulk stores depth buckets, skipping any (pool, start_time, end_time) already present.
	// Returns the number of rows actually inserted.
	InsertBulk(ctx context.Context, records []*domain.DepthRecord) (int, error)

	// Query returns depth buckets matching spec.
	Query(ctx context.Context, spec QuerySpec) ([]*domain.DepthRecord, error)
}

// SwapStore provides access to swaps_history storage.
type SwapStore interface {
	// InsertBulk stores swap buckets, skipping any (pool, start_time, end_time) already present.
	// Returns the number of rows actually inserted.
	InsertBulk(ctx context.Context, records []*domain.SwapRecord) (int, error)

	// Query returns swap buckets matching spec.
	Query(ctx context.Context, spec QuerySpec) ([]*domain.SwapRecord, error)
}

// EarningsStore provides access to earnings_history and pool_earnings storage.
type EarningsStore interface {
	// InsertBulk upserts each earnings bucket and then inserts its pool breakdown.
	// A bucket that already exists is reused, so its children can be completed later.
	// Returns the number of new earnings buckets.
	InsertBulk(ctx context.Context, records []*domain.EarningsRecord) (int, error)

	// Query returns earnings buckets matching spec, each with its pool breakdown attached.
	Query(ctx context.Context, spec QuerySpec) ([]*domain.EarningsRecord, error)
}

// RunePoolStore provides access to runepool_history storage.
type RunePoolStore interface {
	// InsertBulk stores RUNEPool buckets, skipping any (start_time, end_time) already present.
	// Returns the number of rows actually inserted.
	InsertBulk(ctx context.Context, records []*domain.RunePoolRecord) (int, error)

	// Query returns RUNEPool buckets matching spec.
	Query(ctx context.Context, spec QuerySpec) ([]*domain.RunePoolRecord, error)
}

// PoolActivityStore reads the depth/swaps join for one pool.
type PoolActivityStore interface {
	// Query returns activity rows for poolID matching spec.
	Query(ctx context.Context, poolID string, spec QuerySpec) ([]*domain.PoolActivityRecord, error)
}
