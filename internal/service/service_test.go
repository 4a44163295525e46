package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midgard-history/internal/domain"
	"midgard-history/internal/midgard"
	"midgard-history/internal/storage"
)

// fakeFetcher serves canned intervals keyed by "family/pool".
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]midgard.RawInterval
	errs      map[string]error
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string][]midgard.RawInterval),
		errs:      make(map[string]error),
	}
}

func fetchKey(family domain.Family, pool string) string {
	return fmt.Sprintf("%s/%s", family, pool)
}

func (f *fakeFetcher) set(t *testing.T, family domain.Family, pool string, bodies ...string) {
	t.Helper()
	raws := make([]midgard.RawInterval, 0, len(bodies))
	for _, b := range bodies {
		var raw midgard.RawInterval
		require.NoError(t, json.Unmarshal([]byte(b), &raw))
		raws = append(raws, raw)
	}
	f.responses[fetchKey(family, pool)] = raws
}

func (f *fakeFetcher) Fetch(_ context.Context, family domain.Family, pool string) ([]midgard.RawInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fetchKey(family, pool)
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.responses[key], nil
}

// memStore keeps records in memory, deduplicated by a caller-supplied key.
type memStore[T any] struct {
	mu      sync.Mutex
	rows    []*T
	seen    map[string]bool
	key     func(*T) string
	queries int
	err     error
}

func newMemStore[T any](key func(*T) string) *memStore[T] {
	return &memStore[T]{seen: make(map[string]bool), key: key}
}

func (m *memStore[T]) InsertBulk(_ context.Context, records []*T) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, r := range records {
		k := m.key(r)
		if m.seen[k] {
			continue
		}
		m.seen[k] = true
		m.rows = append(m.rows, r)
		n++
	}
	return n, nil
}

func (m *memStore[T]) Query(_ context.Context, _ storage.QuerySpec) ([]*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.err != nil {
		return nil, m.err
	}
	return append([]*T{}, m.rows...), nil
}

type memActivity struct {
	rows    []*domain.PoolActivityRecord
	queries int
}

func (m *memActivity) Query(_ context.Context, poolID string, _ storage.QuerySpec) ([]*domain.PoolActivityRecord, error) {
	m.queries++
	if poolID == "" {
		return nil, storage.ErrInvalidQuery
	}
	return m.rows, nil
}

// memCache mimics the generation scheme of the Redis cache.
type memCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	generations map[string]int
	loadErr     error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte), generations: make(map[string]int)}
}

func (c *memCache) Load(_ context.Context, scope, variant string, spec storage.QuerySpec, dst any) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return "", false, c.loadErr
	}
	key := fmt.Sprintf("%s:%d:%s:%s", scope, c.generations[scope], variant, spec.Key())
	data, ok := c.entries[key]
	if !ok {
		return key, false, nil
	}
	return key, true, json.Unmarshal(data, dst)
}

func (c *memCache) Store(_ context.Context, key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *memCache) Invalidate(_ context.Context, scope string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[scope]++
	return nil
}

func (c *memCache) generation(scope string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[scope]
}

type fixture struct {
	fetcher  *fakeFetcher
	depth    *memStore[domain.DepthRecord]
	swaps    *memStore[domain.SwapRecord]
	earnings *memStore[domain.EarningsRecord]
	runepool *memStore[domain.RunePoolRecord]
	activity *memActivity
	cache    *memCache
	svc      *Service
}

func bucketKey(pool string, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", pool, start.UnixMilli(), end.UnixMilli())
}

func newFixture(t *testing.T, pools ...string) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:  newFakeFetcher(),
		depth:    newMemStore(func(r *domain.DepthRecord) string { return bucketKey(r.Pool, r.StartTime, r.EndTime) }),
		swaps:    newMemStore(func(r *domain.SwapRecord) string { return bucketKey(r.Pool, r.StartTime, r.EndTime) }),
		earnings: newMemStore(func(r *domain.EarningsRecord) string { return bucketKey("", r.StartTime, r.EndTime) }),
		runepool: newMemStore(func(r *domain.RunePoolRecord) string { return bucketKey("", r.StartTime, r.EndTime) }),
		activity: &memActivity{},
		cache:    newMemCache(),
	}

	svc, err := New(Options{
		Fetcher: f.fetcher,
		Stores: Stores{
			Depth:    f.depth,
			Swaps:    f.swaps,
			Earnings: f.earnings,
			RunePool: f.runepool,
			Activity: f.activity,
		},
		Cache:  f.cache,
		Pools:  pools,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

const (
	depthDay1 = `{"startTime":"1699913600000","endTime":"1700000000000","assetDepth":"12345","runeDepth":"6789"}`
	depthDay2 = `{"startTime":"1700000000000","endTime":"1700086400000","assetDepth":"12000","runeDepth":"7000"}`
	noEndTime = `{"startTime":"1700000000000","assetDepth":"1"}`
)

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Fetcher: newFakeFetcher()})
	assert.Error(t, err)
}

func TestFetchAndStoreDepths_PerPoolIsolation(t *testing.T) {
	f := newFixture(t, "BTC.BTC", "ETH.ETH", "DOGE.DOGE")
	f.fetcher.set(t, domain.FamilyDepth, "BTC.BTC", depthDay1, depthDay2, noEndTime)
	f.fetcher.errs[fetchKey(domain.FamilyDepth, "ETH.ETH")] = &midgard.UpstreamError{Status: 404, Body: "unknown pool"}
	f.fetcher.set(t, domain.FamilyDepth, "DOGE.DOGE", depthDay1)

	n, err := f.svc.FetchAndStoreDepths(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETH.ETH")

	var upstream *midgard.UpstreamError
	assert.True(t, errors.As(err, &upstream))

	assert.Equal(t, 3, n, "two BTC buckets and one DOGE bucket; the interval without endTime is skipped")
	require.Len(t, f.depth.rows, 3)
	assert.Equal(t, "BTC.BTC", f.depth.rows[0].Pool)
	assert.Equal(t, int64(12345), f.depth.rows[0].AssetDepth)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), f.depth.rows[0].EndTime)
}

func TestFetchAndStore_Idempotent(t *testing.T) {
	f := newFixture(t, "BTC.BTC")
	f.fetcher.set(t, domain.FamilyDepth, "BTC.BTC", depthDay1, depthDay2)

	ctx := context.Background()
	n, err := f.svc.FetchAndStoreDepths(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, f.cache.generation("depth"))
	assert.Equal(t, 1, f.cache.generation(ScopeActivity))

	n, err = f.svc.FetchAndStoreDepths(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, f.depth.rows, 2)
	assert.Equal(t, 1, f.cache.generation("depth"), "nothing new, nothing invalidated")
}

func TestFetchAndStoreEarnings(t *testing.T) {
	f := newFixture(t)
	f.fetcher.set(t, domain.FamilyEarnings, "", `{
		"startTime":"1699913600000","endTime":"1700000000000",
		"liquidityFees":"100","earnings":"250",
		"pools":[{"pool":"BTC.BTC","earnings":"200"},{"pool":"ETH.ETH","earnings":"50"}]
	}`)

	n, err := f.svc.FetchAndStoreEarnings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.earnings.rows, 1)
	require.Len(t, f.earnings.rows[0].Pools, 2)
	assert.Equal(t, int64(200), f.earnings.rows[0].Pools[0].Earnings)
	assert.Equal(t, 1, f.cache.generation("earnings"))
	assert.Equal(t, 0, f.cache.generation(ScopeActivity))
}

func TestFetchAndStoreRunePool_StorageError(t *testing.T) {
	f := newFixture(t)
	f.fetcher.set(t, domain.FamilyRunePool, "", `{"startTime":"1699913600000","endTime":"1700000000000","count":"3","units":"10"}`)
	f.runepool.err = fmt.Errorf("%w: connection refused", storage.ErrStorage)

	n, err := f.svc.FetchAndStoreRunePool(context.Background())
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, storage.ErrStorage)
}

func TestRunCycle_FamilyFailureIsIsolated(t *testing.T) {
	f := newFixture(t, "BTC.BTC")
	f.fetcher.set(t, domain.FamilyDepth, "BTC.BTC", depthDay1)
	f.fetcher.set(t, domain.FamilySwaps, "BTC.BTC", `{"startTime":"1699913600000","endTime":"1700000000000","totalCount":"4","totalVolume":"900"}`)
	f.fetcher.errs[fetchKey(domain.FamilyEarnings, "")] = midgard.ErrRateLimitExceeded
	f.fetcher.set(t, domain.FamilyRunePool, "", `{"startTime":"1699913600000","endTime":"1700000000000","count":"3","units":"10"}`)

	report := f.svc.RunCycle(context.Background())

	assert.NotEqual(t, uuid.Nil, report.ID)
	require.Len(t, report.Results, len(domain.Families))
	assert.Equal(t, 3, report.Inserted())

	byFamily := make(map[domain.Family]FamilyResult)
	for _, r := range report.Results {
		byFamily[r.Family] = r
	}
	assert.NoError(t, byFamily[domain.FamilyDepth].Err)
	assert.NoError(t, byFamily[domain.FamilySwaps].Err)
	assert.NoError(t, byFamily[domain.FamilyRunePool].Err)
	assert.ErrorIs(t, byFamily[domain.FamilyEarnings].Err, midgard.ErrRateLimitExceeded)
	assert.NotEmpty(t, byFamily[domain.FamilyEarnings].Error)

	assert.ErrorIs(t, report.Err(), midgard.ErrRateLimitExceeded)
	assert.Len(t, f.swaps.rows, 1)
	assert.Equal(t, 2, f.cache.generation(ScopeActivity), "depth and swaps each bump activity")
}

func TestRunCycle_AllSucceed(t *testing.T) {
	f := newFixture(t)
	report := f.svc.RunCycle(context.Background())
	assert.NoError(t, report.Err())
	assert.Equal(t, 0, report.Inserted())
}

func TestGetDepths_ReadThroughCache(t *testing.T) {
	f := newFixture(t, "BTC.BTC")
	f.fetcher.set(t, domain.FamilyDepth, "BTC.BTC", depthDay1)
	ctx := context.Background()

	rows, err := f.svc.GetDepths(ctx, storage.QuerySpec{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, rows)

	rows, err = f.svc.GetDepths(ctx, storage.QuerySpec{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, f.depth.queries, "second read is served from cache")

	_, err = f.svc.FetchAndStoreDepths(ctx)
	require.NoError(t, err)

	rows, err = f.svc.GetDepths(ctx, storage.QuerySpec{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, f.depth.queries, "ingestion invalidates the depth scope")
	assert.Equal(t, int64(6789), rows[0].RuneDepth)
}

func TestGetDepths_InvalidRangeSkipsCache(t *testing.T) {
	f := newFixture(t, "BTC.BTC")
	ctx := context.Background()

	_, err := f.svc.GetDepths(ctx, storage.QuerySpec{})
	require.NoError(t, err)

	inverted := storage.QuerySpec{DateRange: &storage.TimeRange{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	rows, err := f.svc.GetDepths(ctx, inverted)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	assert.Nil(t, rows)
	assert.Equal(t, 1, f.depth.queries)
}

func TestGetEarnings_CacheRoundTripKeepsPools(t *testing.T) {
	f := newFixture(t)
	f.earnings.rows = []*domain.EarningsRecord{{
		ID:    1,
		Pools: []*domain.PoolEarningRecord{{Pool: "BTC.BTC", Earnings: 7}},
	}}
	ctx := context.Background()

	_, err := f.svc.GetEarnings(ctx, storage.QuerySpec{})
	require.NoError(t, err)
	rows, err := f.svc.GetEarnings(ctx, storage.QuerySpec{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.earnings.queries)
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Pools, 1)
	assert.Equal(t, int64(7), rows[0].Pools[0].Earnings)
}

func TestGetRunePool_CacheErrorFallsThrough(t *testing.T) {
	f := newFixture(t)
	f.cache.loadErr = errors.New("redis: connection refused")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.GetRunePool(ctx, storage.QuerySpec{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.runepool.queries)
}

func TestGetSwaps_StorageErrorNotCached(t *testing.T) {
	f := newFixture(t)
	f.swaps.err = fmt.Errorf("%w: timeout", storage.ErrStorage)
	ctx := context.Background()

	_, err := f.svc.GetSwaps(ctx, storage.QuerySpec{})
	assert.ErrorIs(t, err, storage.ErrStorage)

	f.swaps.err = nil
	rows, err := f.svc.GetSwaps(ctx, storage.QuerySpec{})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Equal(t, 2, f.swaps.queries)
}

func TestGetPoolActivity_VariantPerPool(t *testing.T) {
	f := newFixture(t)
	f.activity.rows = []*domain.PoolActivityRecord{{Pool: "BTC.BTC", SwapCount: 2}}
	ctx := context.Background()

	_, err := f.svc.GetPoolActivity(ctx, "BTC.BTC", storage.QuerySpec{})
	require.NoError(t, err)
	_, err = f.svc.GetPoolActivity(ctx, "ETH.ETH", storage.QuerySpec{})
	require.NoError(t, err)
	_, err = f.svc.GetPoolActivity(ctx, "BTC.BTC", storage.QuerySpec{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.activity.queries)

	_, err = f.svc.GetPoolActivity(ctx, "", storage.QuerySpec{})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestService_WithoutCache(t *testing.T) {
	f := newFixture(t)
	f.svc.cache = nil
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.GetDepths(ctx, storage.QuerySpec{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.depth.queries)
}
