// Package service ties the Midgard fetcher, normalizer, stores and query cache
// into the ingestion and read operations used by the commands.
package service

import (
	"context"
	"errors"
	"log/slog"

	"midgard-history/internal/domain"
	"midgard-history/internal/midgard"
	"midgard-history/internal/normalization"
	"midgard-history/internal/storage"
)

// ScopeActivity is the cache scope of pool activity reads.
// The other scopes are the family names.
const ScopeActivity = "activity"

// Fetcher retrieves raw intervals for one family.
type Fetcher interface {
	Fetch(ctx context.Context, family domain.Family, pool string) ([]midgard.RawInterval, error)
}

// QueryCache is a read-through cache for query results.
type QueryCache interface {
	Load(ctx context.Context, scope, variant string, spec storage.QuerySpec, dst any) (key string, hit bool, err error)
	Store(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context, scope string) error
}

// Stores groups the storage backends used by the service.
type Stores struct {
	Depth    storage.DepthStore
	Swaps    storage.SwapStore
	Earnings storage.EarningsStore
	RunePool storage.RunePoolStore
	Activity storage.PoolActivityStore
}

// Options configures a Service.
type Options struct {
	Fetcher    Fetcher
	Normalizer *normalization.Normalizer
	Stores     Stores
	// Cache is optional. Reads go straight to storage when nil.
	Cache QueryCache
	// Pools are the pools fetched for depth and swaps.
	Pools  []string
	Logger *slog.Logger
}

// Service is the facade over ingestion and reads. It holds no mutable state
// and is safe for concurrent use.
type Service struct {
	fetcher    Fetcher
	normalizer *normalization.Normalizer
	stores     Stores
	cache      QueryCache
	pools      []string
	logger     *slog.Logger
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("service: fetcher is required")
	}
	s := opts.Stores
	if s.Depth == nil || s.Swaps == nil || s.Earnings == nil || s.RunePool == nil || s.Activity == nil {
		return nil, errors.New("service: all stores are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = normalization.New(normalization.Options{Logger: logger})
	}

	return &Service{
		fetcher:    opts.Fetcher,
		normalizer: normalizer,
		stores:     s,
		cache:      opts.Cache,
		pools:      append([]string(nil), opts.Pools...),
		logger:     logger,
	}, nil
}
