package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"midgard-history/internal/domain"
	"midgard-history/internal/midgard"
	"midgard-history/internal/observability"
)

// FamilyResult is the outcome of one family within a cycle.
type FamilyResult struct {
	Family   domain.Family `json:"family"`
	Inserted int           `json:"inserted"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// CycleReport summarizes one ingestion cycle.
type CycleReport struct {
	ID       uuid.UUID      `json:"id"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
	Results  []FamilyResult `json:"results"`
}

// Inserted returns the number of rows inserted across all families.
func (r CycleReport) Inserted() int {
	total := 0
	for _, res := range r.Results {
		total += res.Inserted
	}
	return total
}

// Err joins the per-family errors, or returns nil if every family succeeded.
func (r CycleReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Family, res.Err))
		}
	}
	return errors.Join(errs...)
}

// RunCycle ingests all four families concurrently. A failing family is logged
// and reported but never stops the others.
func (s *Service) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{
		ID:      uuid.New(),
		Started: time.Now().UTC(),
		Results: make([]FamilyResult, len(domain.Families)),
	}
	logger := s.logger.With("cycle_id", report.ID.String())
	logger.Info("ingestion cycle started", "pools", s.pools)

	var g errgroup.Group
	for i, family := range domain.Families {
		g.Go(func() error {
			start := time.Now()
			n, err := s.fetchAndStore(ctx, family)
			res := FamilyResult{Family: family, Inserted: n, Err: err, Duration: time.Since(start)}
			if err != nil {
				res.Error = err.Error()
				logger.Error("family ingestion failed", "family", family, "inserted", n, "error", err)
			} else {
				logger.Info("family ingested", "family", family, "inserted", n, "duration", res.Duration)
			}
			observability.RecordCycleFamily(family.String(), err)
			report.Results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.Started)
	observability.RecordCycle(report.Duration.Seconds())
	logger.Info("ingestion cycle finished",
		"inserted", report.Inserted(),
		"duration", report.Duration,
		"failed", report.Err() != nil,
	)
	return report
}

func (s *Service) fetchAndStore(ctx context.Context, family domain.Family) (int, error) {
	switch family {
	case domain.FamilyDepth:
		return s.FetchAndStoreDepths(ctx)
	case domain.FamilySwaps:
		return s.FetchAndStoreSwaps(ctx)
	case domain.FamilyEarnings:
		return s.FetchAndStoreEarnings(ctx)
	case domain.FamilyRunePool:
		return s.FetchAndStoreRunePool(ctx)
	default:
		return 0, fmt.Errorf("%w: %s", midgard.ErrUnknownFamily, family)
	}
}

// FetchAndStoreDepths ingests depth history for every configured pool.
// A failing pool does not stop the remaining pools.
func (s *Service) FetchAndStoreDepths(ctx context.Context) (int, error) {
	total, err := forEachPool(ctx, s, domain.FamilyDepth, func(ctx context.Context, pool string) (int, error) {
		raws, err := s.fetcher.Fetch(ctx, domain.FamilyDepth, pool)
		if err != nil {
			return 0, err
		}
		records := normalizeAll(s, domain.FamilyDepth, raws, func(raw midgard.RawInterval) (*domain.DepthRecord, error) {
			return s.normalizer.Depth(raw, pool)
		})
		return s.stores.Depth.InsertBulk(ctx, records)
	})
	s.afterStore(ctx, domain.FamilyDepth, total, ScopeActivity)
	return total, err
}

// FetchAndStoreSwaps ingests swap history for every configured pool.
func (s *Service) FetchAndStoreSwaps(ctx context.Context) (int, error) {
	total, err := forEachPool(ctx, s, domain.FamilySwaps, func(ctx context.Context, pool string) (int, error) {
		raws, err := s.fetcher.Fetch(ctx, domain.FamilySwaps, pool)
		if err != nil {
			return 0, err
		}
		records := normalizeAll(s, domain.FamilySwaps, raws, func(raw midgard.RawInterval) (*domain.SwapRecord, error) {
			return s.normalizer.Swap(raw, pool)
		})
		return s.stores.Swaps.InsertBulk(ctx, records)
	})
	s.afterStore(ctx, domain.FamilySwaps, total, ScopeActivity)
	return total, err
}

// FetchAndStoreEarnings ingests network earnings together with the per-pool breakdown.
func (s *Service) FetchAndStoreEarnings(ctx context.Context) (int, error) {
	raws, err := s.fetcher.Fetch(ctx, domain.FamilyEarnings, "")
	if err != nil {
		return 0, fmt.Errorf("fetch earnings: %w", err)
	}
	records := normalizeAll(s, domain.FamilyEarnings, raws, s.normalizer.Earnings)

	n, err := s.stores.Earnings.InsertBulk(ctx, records)
	observability.RecordStored(domain.FamilyEarnings.String(), n)
	s.afterStore(ctx, domain.FamilyEarnings, n)
	if err != nil {
		return n, fmt.Errorf("store earnings: %w", err)
	}
	return n, nil
}

// FetchAndStoreRunePool ingests RUNEPool membership history.
func (s *Service) FetchAndStoreRunePool(ctx context.Context) (int, error) {
	raws, err := s.fetcher.Fetch(ctx, domain.FamilyRunePool, "")
	if err != nil {
		return 0, fmt.Errorf("fetch runepool: %w", err)
	}
	records := normalizeAll(s, domain.FamilyRunePool, raws, s.normalizer.RunePool)

	n, err := s.stores.RunePool.InsertBulk(ctx, records)
	observability.RecordStored(domain.FamilyRunePool.String(), n)
	s.afterStore(ctx, domain.FamilyRunePool, n)
	if err != nil {
		return n, fmt.Errorf("store runepool: %w", err)
	}
	return n, nil
}

// forEachPool runs fn for every configured pool and joins the failures.
func forEachPool(ctx context.Context, s *Service, family domain.Family, fn func(ctx context.Context, pool string) (int, error)) (int, error) {
	total := 0
	var errs []error
	for _, pool := range s.pools {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := fn(ctx, pool)
		total += n
		observability.RecordStored(family.String(), n)
		if err != nil {
			s.logger.Warn("pool ingestion failed", "family", family, "pool", pool, "error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", family, pool, err))
		}
	}
	return total, errors.Join(errs...)
}

// normalizeAll converts raw intervals, skipping those that cannot be keyed.
func normalizeAll[T any](s *Service, family domain.Family, raws []midgard.RawInterval, convert func(midgard.RawInterval) (T, error)) []T {
	records := make([]T, 0, len(raws))
	for i, raw := range raws {
		rec, err := convert(raw)
		if err != nil {
			s.logger.Warn("skipping interval", "family", family, "index", i, "error", err)
			observability.RecordIntervalSkipped(family.String())
			continue
		}
		records = append(records, rec)
	}
	return records
}

// afterStore bumps the cache generations of the scopes affected by new rows.
func (s *Service) afterStore(ctx context.Context, family domain.Family, inserted int, extra ...string) {
	if s.cache == nil || inserted == 0 {
		return
	}
	for _, scope := range append([]string{family.String()}, extra...) {
		if err := s.cache.Invalidate(ctx, scope); err != nil {
			s.logger.Warn("cache invalidation failed", "scope", scope, "error", err)
		}
	}
}
