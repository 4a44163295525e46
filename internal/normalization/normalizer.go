// Package normalization maps raw Midgard intervals into typed history records.
package normalization

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"midgard-history/internal/domain"
	"midgard-history/internal/midgard"
	"midgard-history/internal/observability"
)

// ErrMissingTimestamp is returned when an interval has no endTime at all.
// Such an interval cannot be keyed and is skipped.
var ErrMissingTimestamp = errors.New("interval has no endTime")

// DefaultGranularity is the bucket width assumed when deriving a missing startTime.
const DefaultGranularity = 24 * time.Hour

// Issue describes a field that fell back to a default value.
type Issue struct {
	Family domain.Family
	Field  string
	Reason string
	Value  string
}

// Options configures a Normalizer.
type Options struct {
	// Granularity is the bucket width. Default: 24h.
	Granularity time.Duration
	Logger      *slog.Logger
	// OnIssue, if set, is called for every data-quality event.
	OnIssue func(Issue)
}

// Normalizer converts raw intervals into records. It holds no mutable state
// and is safe for concurrent use.
type Normalizer struct {
	granularity time.Duration
	logger      *slog.Logger
	onIssue     func(Issue)
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	granularity := opts.Granularity
	if granularity <= 0 {
		granularity = DefaultGranularity
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Normalizer{
		granularity: granularity,
		logger:      logger,
		onIssue:     opts.OnIssue,
	}
}

// Normalize dispatches on family. pool is used by depth and swaps only.
func (n *Normalizer) Normalize(family domain.Family, pool string, raw midgard.RawInterval) (domain.IntervalRecord, error) {
	switch family {
	case domain.FamilyDepth:
		return record(n.Depth(raw, pool))
	case domain.FamilySwaps:
		return record(n.Swap(raw, pool))
	case domain.FamilyEarnings:
		return record(n.Earnings(raw))
	case domain.FamilyRunePool:
		return record(n.RunePool(raw))
	default:
		return nil, fmt.Errorf("normalize: unknown family %q", family)
	}
}

// record keeps a failed typed result from becoming a non-nil interface.
func record[T domain.IntervalRecord](rec T, err error) (domain.IntervalRecord, error) {
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Depth normalizes one depth interval for pool.
func (n *Normalizer) Depth(raw midgard.RawInterval, pool string) (*domain.DepthRecord, error) {
	f := n.reader(domain.FamilyDepth, raw)
	start, end, err := n.bucket(f)
	if err != nil {
		return nil, err
	}

	return &domain.DepthRecord{
		Pool:           pool,
		StartTime:      start,
		EndTime:        end,
		AssetDepth:     f.int("assetDepth"),
		RuneDepth:      f.int("runeDepth"),
		AssetPrice:     f.float("assetPrice"),
		AssetPriceUSD:  f.float("assetPriceUSD"),
		LiquidityUnits: f.int("liquidityUnits"),
		MembersCount:   f.int("membersCount"),
		SynthUnits:     f.int("synthUnits"),
		SynthSupply:    f.int("synthSupply"),
		Units:          f.int("units"),
		Luvi:           f.float("luvi"),
	}, nil
}

// Swap normalizes one swaps interval for pool.
func (n *Normalizer) Swap(raw midgard.RawInterval, pool string) (*domain.SwapRecord, error) {
	f := n.reader(domain.FamilySwaps, raw)
	start, end, err := n.bucket(f)
	if err != nil {
		return nil, err
	}

	return &domain.SwapRecord{
		Pool:           pool,
		StartTime:      start,
		EndTime:        end,
		ToAssetCount:   f.int("toAssetCount"),
		ToRuneCount:    f.int("toRuneCount"),
		TotalCount:     f.int("totalCount"),
		ToAssetVolume:  f.int("toAssetVolume"),
		ToRuneVolume:   f.int("toRuneVolume"),
		TotalVolume:    f.int("totalVolume"),
		ToAssetFees:    f.int("toAssetFees"),
		ToRuneFees:     f.int("toRuneFees"),
		TotalFees:      f.int("totalFees"),
		TotalVolumeUSD: f.float("totalVolumeUSD"),
		RunePriceUSD:   f.float("runePriceUSD"),
		AverageSlip:    f.float("averageSlip"),
	}, nil
}

// Earnings normalizes one earnings interval together with its per-pool breakdown.
// Pool entries without a pool name are dropped.
func (n *Normalizer) Earnings(raw midgard.RawInterval) (*domain.EarningsRecord, error) {
	f := n.reader(domain.FamilyEarnings, raw)
	start, end, err := n.bucket(f)
	if err != nil {
		return nil, err
	}

	rec := &domain.EarningsRecord{
		StartTime:         start,
		EndTime:           end,
		LiquidityFees:     f.int("liquidityFees"),
		BlockRewards:      f.int("blockRewards"),
		Earnings:          f.int("earnings"),
		BondingEarnings:   f.int("bondingEarnings"),
		LiquidityEarnings: f.int("liquidityEarnings"),
		AvgNodeCount:      f.float("avgNodeCount"),
		RunePriceUSD:      f.float("runePriceUSD"),
		Pools:             []*domain.PoolEarningRecord{},
	}

	if !f.present("pools") {
		return rec, nil
	}

	var pools []map[string]json.RawMessage
	if err := json.Unmarshal(raw["pools"], &pools); err != nil {
		f.report("pools", ReasonMalformed, "")
		return rec, nil
	}

	seen := make(map[string]bool, len(pools))
	for _, entry := range pools {
		p := n.reader(domain.FamilyEarnings, entry)
		name := p.string("pool")
		if name == "" {
			p.report("pools.pool", ReasonMissing, "")
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		rec.Pools = append(rec.Pools, &domain.PoolEarningRecord{
			Pool:                   name,
			AssetLiquidityFees:     p.int("assetLiquidityFees"),
			RuneLiquidityFees:      p.int("runeLiquidityFees"),
			TotalLiquidityFeesRune: p.int("totalLiquidityFeesRune"),
			SaverEarning:           p.int("saverEarning"),
			Rewards:                p.int("rewards"),
			Earnings:               p.int("earnings"),
		})
	}
	return rec, nil
}

// RunePool normalizes one RUNEPool interval.
func (n *Normalizer) RunePool(raw midgard.RawInterval) (*domain.RunePoolRecord, error) {
	f := n.reader(domain.FamilyRunePool, raw)
	start, end, err := n.bucket(f)
	if err != nil {
		return nil, err
	}

	return &domain.RunePoolRecord{
		StartTime: start,
		EndTime:   end,
		Count:     f.int("count"),
		Units:     f.int("units"),
	}, nil
}

// bucket reads startTime and endTime.
// endTime is mandatory; a missing startTime is derived from endTime and the granularity.
func (n *Normalizer) bucket(f fieldReader) (start, end time.Time, err error) {
	if !f.present("endTime") {
		return time.Time{}, time.Time{}, ErrMissingTimestamp
	}
	end = f.instant("endTime")

	if f.present("startTime") {
		return f.instant("startTime"), end, nil
	}

	f.report("startTime", ReasonMissing, "")
	if end.Equal(MinInstant) {
		return MinInstant, end, nil
	}
	return end.Add(-n.granularity), end, nil
}

func (n *Normalizer) reader(family domain.Family, raw map[string]json.RawMessage) fieldReader {
	return fieldReader{
		raw: raw,
		report: func(field, reason, value string) {
			n.dataQuality(Issue{Family: family, Field: field, Reason: reason, Value: value})
		},
	}
}

func (n *Normalizer) dataQuality(issue Issue) {
	observability.RecordDataQuality(issue.Family.String(), issue.Field, issue.Reason)
	n.logger.Warn("data quality: field defaulted",
		"family", issue.Family,
		"field", issue.Field,
		"reason", issue.Reason,
		"value", issue.Value,
	)
	if n.onIssue != nil {
		n.onIssue(issue)
	}
}
