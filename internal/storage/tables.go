package storage

import (
	"fmt"
	"strings"
)

// Table describes one readable history surface.
// Only the identifiers listed here ever reach generated SQL text.
type Table struct {
	// Source is the FROM clause: a table name or a join expression.
	Source string
	// Columns is the select list.
	Columns []string
	// TimeColumn is filtered by the date parameters and used for the default order.
	TimeColumn string
	// LiquidityColumn is compared against liquidity_gt.
	LiquidityColumn string
	// TieBreaker makes ordering total when sort values repeat.
	TieBreaker string
	// Sortable maps client-facing sort names to column expressions.
	Sortable map[string]string
}

// SortColumn resolves a client-facing sort name against the allowlist.
func (t Table) SortColumn(name string) (string, error) {
	col, ok := t.Sortable[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: cannot sort by %q", ErrInvalidQuery, name)
	}
	return col, nil
}

// DepthTable is the depth_history read surface.
var DepthTable = Table{
	Source: "depth_history",
	Columns: []string{
		"id", "pool", "start_time", "end_time", "asset_depth", "rune_depth",
		"asset_price", "asset_price_usd", "liquidity_units", "members_count",
		"synth_units", "synth_supply", "units", "luvi",
	},
	TimeColumn:      "start_time",
	LiquidityColumn: "liquidity_units",
	TieBreaker:      "id",
	Sortable: withAliases(identity(
		"start_time", "end_time", "pool", "asset_depth", "rune_depth", "asset_price",
		"asset_price_usd", "liquidity_units", "members_count", "synth_units",
		"synth_supply", "units", "luvi",
	), map[string]string{
		"timestamp": "start_time",
		"price":     "asset_price",
		"liquidity": "liquidity_units",
	}),
}

// SwapsTable is the swaps_history read surface.
var SwapsTable = Table{
	Source: "swaps_history",
	Columns: []string{
		"id", "pool", "start_time", "end_time", "to_asset_count", "to_rune_count",
		"total_count", "to_asset_volume", "to_rune_volume", "total_volume",
		"to_asset_fees", "to_rune_fees", "total_fees", "total_volume_usd",
		"rune_price_usd", "average_slip",
	},
	TimeColumn:      "start_time",
	LiquidityColumn: "total_volume",
	TieBreaker:      "id",
	Sortable: withAliases(identity(
		"start_time", "end_time", "pool", "to_asset_count", "to_rune_count",
		"total_count", "to_asset_volume", "to_rune_volume", "total_volume",
		"to_asset_fees", "to_rune_fees", "total_fees", "total_volume_usd",
		"rune_price_usd", "average_slip",
	), map[string]string{
		"timestamp": "start_time",
		"volume":    "total_volume",
		"fees":      "total_fees",
	}),
}

// EarningsTable is the earnings_history read surface.
var EarningsTable = Table{
	Source: "earnings_history",
	Columns: []string{
		"id", "start_time", "end_time", "liquidity_fees", "block_rewards", "earnings",
		"bonding_earnings", "liquidity_earnings", "avg_node_count", "rune_price_usd",
	},
	TimeColumn:      "start_time",
	LiquidityColumn: "liquidity_fees",
	TieBreaker:      "id",
	Sortable: withAliases(identity(
		"start_time", "end_time", "liquidity_fees", "block_rewards", "earnings",
		"bonding_earnings", "liquidity_earnings", "avg_node_count", "rune_price_usd",
	), map[string]string{
		"timestamp": "start_time",
	}),
}

// RunePoolTable is the runepool_history read surface.
var RunePoolTable = Table{
	Source:          "runepool_history",
	Columns:         []string{"id", "start_time", "end_time", "count", "units"},
	TimeColumn:      "start_time",
	LiquidityColumn: "units",
	TieBreaker:      "id",
	Sortable: withAliases(identity("start_time", "end_time", "count", "units"), map[string]string{
		"timestamp": "start_time",
	}),
}

// PoolActivityTable joins depth buckets with the matching swap buckets.
var PoolActivityTable = Table{
	Source: "depth_history d LEFT JOIN swaps_history s " +
		"ON d.pool = s.pool AND d.start_time = s.start_time AND d.end_time = s.end_time",
	Columns: []string{
		"d.pool", "d.start_time", "d.end_time", "d.asset_depth", "d.rune_depth",
		"d.asset_price", "d.liquidity_units",
		"COALESCE(s.total_count, 0) AS swap_count",
		"COALESCE(s.total_volume, 0) AS swap_volume",
		"COALESCE(s.total_fees, 0) AS swap_fees",
		"COALESCE(s.total_volume_usd, 0) AS volume_usd",
	},
	TimeColumn:      "d.start_time",
	LiquidityColumn: "d.liquidity_units",
	TieBreaker:      "d.id",
	Sortable: map[string]string{
		"start_time":      "d.start_time",
		"end_time":        "d.end_time",
		"timestamp":       "d.start_time",
		"asset_depth":     "d.asset_depth",
		"rune_depth":      "d.rune_depth",
		"asset_price":     "d.asset_price",
		"liquidity_units": "d.liquidity_units",
		"swap_count":      "COALESCE(s.total_count, 0)",
		"swap_volume":     "COALESCE(s.total_volume, 0)",
		"swap_fees":       "COALESCE(s.total_fees, 0)",
		"volume_usd":      "COALESCE(s.total_volume_usd, 0)",
	},
}

func identity(cols ...string) map[string]string {
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c] = c
	}
	return m
}

func withAliases(m map[string]string, aliases map[string]string) map[string]string {
	for k, v := range aliases {
		m[k] = v
	}
	return m
}
