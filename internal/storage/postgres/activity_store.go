package postgres

import (
	"context"
	"fmt"
	"strings"

	"midgard-history/internal/domain"
	"midgard-history/internal/storage"
)

// PoolActivityStore implements storage.PoolActivityStore using PostgreSQL.
type PoolActivityStore struct {
	pool *Pool
}

// NewPoolActivityStore creates a new PoolActivityStore.
func NewPoolActivityStore(pool *Pool) *PoolActivityStore {
	return &PoolActivityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolActivityStore = (*PoolActivityStore)(nil)

// Query returns depth buckets of poolID joined with the swap bucket of the same window.
// Windows without swaps report zero swap figures.
func (s *PoolActivityStore) Query(ctx context.Context, poolID string, spec storage.QuerySpec) ([]*domain.PoolActivityRecord, error) {
	if strings.TrimSpace(poolID) == "" {
		return nil, fmt.Errorf("%w: pool id is required", storage.ErrInvalidQuery)
	}

	sql, args, err := newSelect(storage.PoolActivityTable).
		where("d.pool = @pool_id", "pool_id", poolID).
		build(spec)
	if err != nil {
		return nil, err
	}
	return queryRecords[domain.PoolActivityRecord](ctx, s.pool, "query_pool_activity", sql, args)
}
