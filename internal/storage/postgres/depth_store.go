package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"midgard-history/internal/domain"
	"midgard-history/internal/storage"
)

const insertDepthQuery = `
	INSERT INTO depth_history (
		pool, start_time, end_time, asset_depth, rune_depth, asset_price, asset_price_usd,
		liquidity_units, members_count, synth_units, synth_supply, units, luvi
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (pool, start_time, end_time) DO NOTHING
`

// DepthStore implements storage.DepthStore using PostgreSQL.
type DepthStore struct {
	pool *Pool
}

// NewDepthStore creates a new DepthStore.
func NewDepthStore(pool *Pool) *DepthStore {
	return &DepthStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DepthStore = (*DepthStore)(nil)

// InsertBulk stores depth buckets in one batch. Existing buckets are left untouched.
func (s *DepthStore) InsertBulk(ctx context.Context, records []*domain.DepthRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertDepthQuery,
			r.Pool,
			r.StartTime,
			r.EndTime,
			r.AssetDepth,
			r.RuneDepth,
			r.AssetPrice,
			r.AssetPriceUSD,
			r.LiquidityUnits,
			r.MembersCount,
			r.SynthUnits,
			r.SynthSupply,
			r.Units,
			r.Luvi,
		)
	}

	return execBatch(ctx, s.pool, "insert_depth_history", batch)
}

// Query returns depth buckets matching spec.
func (s *DepthStore) Query(ctx context.Context, spec storage.QuerySpec) ([]*domain.DepthRecord, error) {
	sql, args, err := buildSelect(storage.DepthTable, spec)
	if err != nil {
		return nil, err
	}
	return queryRecords[domain.DepthRecord](ctx, s.pool, "query_depth_history", sql, args)
}
