package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"midgard-history/internal/domain"
	"midgard-history/internal/storage"
)

// RunePoolStore implements storage.RunePoolStore using PostgreSQL.
type RunePoolStore struct {
	pool *Pool
}

// NewRunePoolStore creates a new RunePoolStore.
func NewRunePoolStore(pool *Pool) *RunePoolStore {
	return &RunePoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunePoolStore = (*RunePoolStore)(nil)

// InsertBulk stores RUNEPool buckets in one batch. Existing buckets are left untouched.
func (s *RunePoolStore) InsertBulk(ctx context.Context, records []*domain.RunePoolRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO runepool_history (start_time, end_time, count, units)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (start_time, end_time) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, r.StartTime, r.EndTime, r.Count, r.Units)
	}

	return execBatch(ctx, s.pool, "insert_runepool_history", batch)
}

// Query returns RUNEPool buckets matching spec.
func (s *RunePoolStore) Query(ctx context.Context, spec storage.QuerySpec) ([]*domain.RunePoolRecord, error) {
	sql, args, err := buildSelect(storage.RunePoolTable, spec)
	if err != nil {
		return nil, err
	}
	return queryRecords[domain.RunePoolRecord](ctx, s.pool, "query_runepool_history", sql, args)
}
