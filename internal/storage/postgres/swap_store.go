package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"midgard-history/internal/domain"
	"midgard-history/internal/storage"
)

const insertSwapQuery = `
	INSERT INTO swaps_history (
		pool, start_time, end_time, to_asset_count, to_rune_count, total_count,
		to_asset_volume, to_rune_volume, total_volume, to_asset_fees, to_rune_fees,
		total_fees, total_volume_usd, rune_price_usd, average_slip
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (pool, start_time, end_time) DO NOTHING
`

// SwapStore implements storage.SwapStore using PostgreSQL.
type SwapStore struct {
	pool *Pool
}

// NewSwapStore creates a new SwapStore.
func NewSwapStore(pool *Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapStore = (*SwapStore)(nil)

// InsertBulk stores swap buckets in one batch. Existing buckets are left untouched.
func (s *SwapStore) InsertBulk(ctx context.Context, records []*domain.SwapRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertSwapQuery,
			r.Pool,
			r.StartTime,
			r.EndTime,
			r.ToAssetCount,
			r.ToRuneCount,
			r.TotalCount,
			r.ToAssetVolume,
			r.ToRuneVolume,
			r.TotalVolume,
			r.ToAssetFees,
			r.ToRuneFees,
			r.TotalFees,
			r.TotalVolumeUSD,
			r.RunePriceUSD,
			r.AverageSlip,
		)
	}

	return execBatch(ctx, s.pool, "insert_swaps_history", batch)
}

// Query returns swap buckets matching spec.
func (s *SwapStore) Query(ctx context.Context, spec storage.QuerySpec) ([]*domain.SwapRecord, error) {
	sql, args, err := buildSelect(storage.SwapsTable, spec)
	if err != nil {
		return nil, err
	}
	return queryRecords[domain.SwapRecord](ctx, s.pool, "query_swaps_history", sql, args)
}
