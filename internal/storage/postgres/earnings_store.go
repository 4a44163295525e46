package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"midgard-history/internal/domain"
	"midgard-history/internal/observability"
	"midgard-history/internal/storage"
)

// upsertEarningsQuery returns the bucket id whether or not the row already existed.
// xmax is 0 only for a freshly inserted tuple.
const upsertEarningsQuery = `
	INSERT INTO earnings_history (
		start_time, end_time, liquidity_fees, block_rewards, earnings,
		bonding_earnings, liquidity_earnings, avg_node_count, rune_price_usd
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (start_time, end_time) DO UPDATE SET earnings = EXCLUDED.earnings
	RETURNING id, (xmax = 0) AS inserted
`

const insertPoolEarningQuery = `
	INSERT INTO pool_earnings (
		earnings_history_id, pool, asset_liquidity_fees, rune_liquidity_fees,
		total_liquidity_fees_rune, saver_earning, rewards, earnings
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (earnings_history_id, pool) DO NOTHING
`

const selectPoolEarningsQuery = `
	SELECT id, earnings_history_id, pool, asset_liquidity_fees, rune_liquidity_fees,
		total_liquidity_fees_rune, saver_earning, rewards, earnings
	FROM pool_earnings
	WHERE earnings_history_id = ANY(@ids)
	ORDER BY earnings_history_id, pool
`

// EarningsStore implements storage.EarningsStore using PostgreSQL.
type EarningsStore struct {
	pool *Pool
}

// NewEarningsStore creates a new EarningsStore.
func NewEarningsStore(pool *Pool) *EarningsStore {
	return &EarningsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EarningsStore = (*EarningsStore)(nil)

// InsertBulk upserts each bucket and inserts its pool breakdown in a transaction.
// The parent row is committed before its children; if the children fail the
// parent stays and a later run fills them in. Returns the number of new buckets.
func (s *EarningsStore) InsertBulk(ctx context.Context, records []*domain.EarningsRecord) (int, error) {
	inserted := 0

	for _, rec := range records {
		id, isNew, err := s.upsert(ctx, rec)
		if err != nil {
			return inserted, err
		}
		rec.ID = id
		if isNew {
			inserted++
		}

		if err := s.insertPools(ctx, id, rec.Pools); err != nil {
			return inserted, fmt.Errorf("pool earnings for bucket %s: %w", rec.StartTime.Format(time.RFC3339), err)
		}
	}

	return inserted, nil
}

func (s *EarningsStore) upsert(ctx context.Context, rec *domain.EarningsRecord) (int64, bool, error) {
	start := time.Now()

	var id int64
	var isNew bool
	err := s.pool.QueryRow(ctx, upsertEarningsQuery,
		rec.StartTime,
		rec.EndTime,
		rec.LiquidityFees,
		rec.BlockRewards,
		rec.Earnings,
		rec.BondingEarnings,
		rec.LiquidityEarnings,
		rec.AvgNodeCount,
		rec.RunePriceUSD,
	).Scan(&id, &isNew)
	observability.RecordDBQuery("upsert_earnings_history", time.Since(start).Seconds(), err)
	if err != nil {
		return 0, false, storageError("upsert earnings_history", err)
	}
	return id, isNew, nil
}

// insertPools writes the children of one bucket atomically.
func (s *EarningsStore) insertPools(ctx context.Context, earningsID int64, pools []*domain.PoolEarningRecord) error {
	if len(pools) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range pools {
		p.EarningsHistoryID = earningsID
		batch.Queue(insertPoolEarningQuery,
			p.EarningsHistoryID,
			p.Pool,
			p.AssetLiquidityFees,
			p.RuneLiquidityFees,
			p.TotalLiquidityFeesRune,
			p.SaverEarning,
			p.Rewards,
			p.Earnings,
		)
	}

	if _, err := execBatch(ctx, tx, "insert_pool_earnings", batch); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storageError("commit tx", err)
	}
	return nil
}

// Query returns earnings buckets matching spec with their pool breakdown attached.
func (s *EarningsStore) Query(ctx context.Context, spec storage.QuerySpec) ([]*domain.EarningsRecord, error) {
	sql, args, err := buildSelect(storage.EarningsTable, spec)
	if err != nil {
		return nil, err
	}

	records, err := queryRecords[domain.EarningsRecord](ctx, s.pool, "query_earnings_history", sql, args)
	if err != nil {
		return nil, err
	}
	if err := s.attachPools(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// attachPools loads the children of all records in a single query.
func (s *EarningsStore) attachPools(ctx context.Context, records []*domain.EarningsRecord) error {
	byID := make(map[int64]*domain.EarningsRecord, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		r.Pools = []*domain.PoolEarningRecord{}
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	children, err := queryRecords[domain.PoolEarningRecord](ctx, s.pool, "query_pool_earnings",
		selectPoolEarningsQuery, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return err
	}

	for _, c := range children {
		if parent, ok := byID[c.EarningsHistoryID]; ok {
			parent.Pools = append(parent.Pools, c)
		}
	}
	return nil
}
