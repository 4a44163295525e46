package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"midgard-history/internal/observability"
	"midgard-history/internal/storage"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool. maxConns <= 0 keeps the pgxpool default.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// storageError wraps a database failure so callers can match storage.ErrStorage.
func storageError(op string, err error) error {
	if isDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s: %w: %w", storage.ErrStorage, op, storage.ErrDuplicateKey, err)
	}
	return fmt.Errorf("%w: %s: %w", storage.ErrStorage, op, err)
}

// queryRecords runs a read built by selectQuery and maps rows by column name.
// It never returns a nil slice on success.
func queryRecords[T any](ctx context.Context, pool *Pool, op, sql string, args pgx.NamedArgs) ([]*T, error) {
	start := time.Now()

	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		observability.RecordDBQuery(op, time.Since(start).Seconds(), err)
		return nil, storageError(op, err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	observability.RecordDBQuery(op, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, storageError(op, err)
	}

	if records == nil {
		records = []*T{}
	}
	return records, nil
}

// execBatch sends batch and returns the summed RowsAffected of its statements.
func execBatch(ctx context.Context, db batchSender, op string, batch *pgx.Batch) (int, error) {
	start := time.Now()

	results := db.SendBatch(ctx, batch)
	inserted := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			observability.RecordDBQuery(op, time.Since(start).Seconds(), err)
			return 0, storageError(op, err)
		}
		inserted += int(tag.RowsAffected())
	}

	err := results.Close()
	observability.RecordDBQuery(op, time.Since(start).Seconds(), err)
	if err != nil {
		return 0, storageError(op, err)
	}
	return inserted, nil
}

// batchSender is satisfied by both *pgxpool.Pool and pgx.Tx.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}
