// Package memory provides in-memory implementations of the history stores.
// They follow the PostgreSQL stores' semantics and are meant for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"midgard-history/internal/domain"
	"midgard-history/internal/storage"
)

func bucketKey(pool string, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", pool, start.UnixNano(), end.UnixNano())
}

// DepthStore is an in-memory implementation of storage.DepthStore.
type DepthStore struct {
	mu     sync.RWMutex
	rows   []*domain.DepthRecord // id order
	keys   map[string]*domain.DepthRecord
	nextID int64
}

// NewDepthStore creates a new in-memory depth store.
func NewDepthStore() *DepthStore {
	return &DepthStore{keys: make(map[string]*domain.DepthRecord)}
}

// InsertBulk adds buckets not yet present. Returns the number added.
func (s *DepthStore) InsertBulk(_ context.Context, records []*domain.DepthRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range records {
		if r == nil || r.Pool == "" {
			return inserted, storage.ErrInvalidInput
		}
		key := bucketKey(r.Pool, r.StartTime, r.EndTime)
		if _, exists := s.keys[key]; exists {
			continue
		}
		s.nextID++
		stored := *r
		stored.ID = s.nextID
		s.keys[key] = &stored
		s.rows = append(s.rows, &stored)
		inserted++
	}
	return inserted, nil
}

// Query returns depth buckets matching spec.
func (s *DepthStore) Query(_ context.Context, spec storage.QuerySpec) ([]*domain.DepthRecord, error) {
	p, err := newPlan(storage.DepthTable, depthColumns, spec)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copies(apply(p, s.rows)), nil
}

// snapshot returns the stored buckets of pool in id order.
func (s *DepthStore) snapshot(pool string) []*domain.DepthRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.DepthRecord
	for _, r := range s.rows {
		if r.Pool == pool {
			out = append(out, r)
		}
	}
	return out
}

// SwapStore is an in-memory implementation of storage.SwapStore.
type SwapStore struct {
	mu     sync.RWMutex
	rows   []*domain.SwapRecord
	keys   map[string]*domain.SwapRecord
	nextID int64
}

// NewSwapStore creates a new in-memory swap store.
func NewSwapStore() *SwapStore {
	return &SwapStore{keys: make(map[string]*domain.SwapRecord)}
}

// InsertBulk adds buckets not yet present. Returns the number added.
func (s *SwapStore) InsertBulk(_ context.Context, records []*domain.SwapRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range records {
		if r == nil {
			return inserted, storage.ErrInvalidInput
		}
		key := bucketKey(r.Pool, r.StartTime, r.EndTime)
		if _, exists := s.keys[key]; exists {
			continue
		}
		s.nextID++
		stored := *r
		stored.ID = s.nextID
		s.keys[key] = &stored
		s.rows = append(s.rows, &stored)
		inserted++
	}
	return inserted, nil
}

// Query returns swap buckets matching spec.
func (s *SwapStore) Query(_ context.Context, spec storage.QuerySpec) ([]*domain.SwapRecord, error) {
	p, err := newPlan(storage.SwapsTable, swapColumns, spec)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copies(apply(p, s.rows)), nil
}

func (s *SwapStore) get(pool string, start, end time.Time) (*domain.SwapRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.keys[bucketKey(pool, start, end)]
	return r, ok
}

// EarningsStore is an in-memory implementation of storage.EarningsStore.
type EarningsStore struct {
	mu          sync.RWMutex
	rows        []*domain.EarningsRecord
	keys        map[string]*domain.EarningsRecord
	nextID      int64
	nextChildID int64
}

// NewEarningsStore creates a new in-memory earnings store.
func NewEarningsStore() *EarningsStore {
	return &EarningsStore{keys: make(map[string]*domain.EarningsRecord)}
}

// InsertBulk upserts each bucket and adds pool entries it does not have yet.
// An existing bucket keeps its id and takes the new earnings total.
// Returns the number of new buckets.
func (s *EarningsStore) InsertBulk(_ context.Context, records []*domain.EarningsRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range records {
		if r == nil {
			return inserted, storage.ErrInvalidInput
		}
		key := bucketKey("", r.StartTime, r.EndTime)
		parent, exists := s.keys[key]
		if exists {
			parent.Earnings = r.Earnings
		} else {
			s.nextID++
			stored := *r
			stored.ID = s.nextID
			stored.Pools = nil
			parent = &stored
			s.keys[key] = parent
			s.rows = append(s.rows, parent)
			inserted++
		}
		r.ID = parent.ID

		for _, child := range r.Pools {
			if child == nil || child.Pool == "" || strings.ContainsRune(child.Pool, 0) {
				return inserted, fmt.Errorf("%w: invalid pool earnings entry", storage.ErrInvalidInput)
			}
		}
		for _, child := range r.Pools {
			child.EarningsHistoryID = parent.ID
			if hasPool(parent.Pools, child.Pool) {
				continue
			}
			s.nextChildID++
			stored := *child
			stored.ID = s.nextChildID
			parent.Pools = append(parent.Pools, &stored)
		}
	}
	return inserted, nil
}

func hasPool(pools []*domain.PoolEarningRecord, pool string) bool {
	for _, p := range pools {
		if p.Pool == pool {
			return true
		}
	}
	return false
}

// Query returns earnings buckets matching spec with their pool breakdown.
func (s *EarningsStore) Query(_ context.Context, spec storage.QuerySpec) ([]*domain.EarningsRecord, error) {
	p, err := newPlan(storage.EarningsTable, earningsColumns, spec)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := apply(p, s.rows)
	out := make([]*domain.EarningsRecord, len(rows))
	for i, r := range rows {
		row := *r
		row.Pools = make([]*domain.PoolEarningRecord, len(r.Pools))
		for j, c := range r.Pools {
			child := *c
			row.Pools[j] = &child
		}
		out[i] = &row
	}
	return out, nil
}

// RunePoolStore is an in-memory implementation of storage.RunePoolStore.
type RunePoolStore struct {
	mu     sync.RWMutex
	rows   []*domain.RunePoolRecord
	keys   map[string]struct{}
	nextID int64
}

// NewRunePoolStore creates a new in-memory RUNEPool store.
func NewRunePoolStore() *RunePoolStore {
	return &RunePoolStore{keys: make(map[string]struct{})}
}

// InsertBulk adds buckets not yet present. Returns the number added.
func (s *RunePoolStore) InsertBulk(_ context.Context, records []*domain.RunePoolRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range records {
		if r == nil {
			return inserted, storage.ErrInvalidInput
		}
		key := bucketKey("", r.StartTime, r.EndTime)
		if _, exists := s.keys[key]; exists {
			continue
		}
		s.keys[key] = struct{}{}
		s.nextID++
		stored := *r
		stored.ID = s.nextID
		s.rows = append(s.rows, &stored)
		inserted++
	}
	return inserted, nil
}

// Query returns RUNEPool buckets matching spec.
func (s *RunePoolStore) Query(_ context.Context, spec storage.QuerySpec) ([]*domain.RunePoolRecord, error) {
	p, err := newPlan(storage.RunePoolTable, runePoolColumns, spec)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copies(apply(p, s.rows)), nil
}

// PoolActivityStore joins the depth and swap stores in memory.
type PoolActivityStore struct {
	depths *DepthStore
	swaps  *SwapStore
}

// NewPoolActivityStore creates an activity view over the given stores.
func NewPoolActivityStore(depths *DepthStore, swaps *SwapStore) *PoolActivityStore {
	return &PoolActivityStore{depths: depths, swaps: swaps}
}

// Query returns the depth buckets of poolID with the swap figures of the same window.
func (s *PoolActivityStore) Query(_ context.Context, poolID string, spec storage.QuerySpec) ([]*domain.PoolActivityRecord, error) {
	if strings.TrimSpace(poolID) == "" {
		return nil, fmt.Errorf("%w: pool id is required", storage.ErrInvalidQuery)
	}
	p, err := newPlan(storage.PoolActivityTable, activityColumns, spec)
	if err != nil {
		return nil, err
	}

	depths := s.depths.snapshot(poolID)
	rows := make([]*domain.PoolActivityRecord, 0, len(depths))
	for _, d := range depths {
		row := &domain.PoolActivityRecord{
			Pool:           d.Pool,
			StartTime:      d.StartTime,
			EndTime:        d.EndTime,
			AssetDepth:     d.AssetDepth,
			RuneDepth:      d.RuneDepth,
			AssetPrice:     d.AssetPrice,
			LiquidityUnits: d.LiquidityUnits,
		}
		if sw, ok := s.swaps.get(d.Pool, d.StartTime, d.EndTime); ok {
			row.SwapCount = sw.TotalCount
			row.SwapVolume = sw.TotalVolume
			row.SwapFees = sw.TotalFees
			row.VolumeUSD = sw.TotalVolumeUSD
		}
		rows = append(rows, row)
	}
	return apply(p, rows), nil
}

var (
	depthColumns    = columnsOf[domain.DepthRecord]()
	swapColumns     = columnsOf[domain.SwapRecord]()
	earningsColumns = columnsOf[domain.EarningsRecord]()
	runePoolColumns = columnsOf[domain.RunePoolRecord]()
	activityColumns = columnsOf[domain.PoolActivityRecord]()
)

func copies[T any](rows []*T) []*T {
	out := make([]*T, len(rows))
	for i, r := range rows {
		row := *r
		out[i] = &row
	}
	return out
}

// Compile-time interface checks.
var (
	_ storage.DepthStore        = (*DepthStore)(nil)
	_ storage.SwapStore         = (*SwapStore)(nil)
	_ storage.EarningsStore     = (*EarningsStore)(nil)
	_ storage.RunePoolStore     = (*RunePoolStore)(nil)
	_ storage.PoolActivityStore = (*PoolActivityStore)(nil)
)
