package domain

import "time"

// EarningsRecord is one network-wide earnings bucket.
// Corresponds to earnings_history table in PostgreSQL.
// Unique key: (start_time, end_time).
//
// Pools holds the per-pool breakdown. It is persisted in pool_earnings,
// each child referencing the parent through EarningsHistoryID.
type EarningsRecord struct {
	ID                int64                `json:"id" db:"id"`
	StartTime         time.Time            `json:"start_time" db:"start_time"`
	EndTime           time.Time            `json:"end_time" db:"end_time"`
	LiquidityFees     int64                `json:"liquidity_fees" db:"liquidity_fees"`
	BlockRewards      int64                `json:"block_rewards" db:"block_rewards"`
	Earnings          int64                `json:"earnings" db:"earnings"`
	BondingEarnings   int64                `json:"bonding_earnings" db:"bonding_earnings"`
	LiquidityEarnings int64                `json:"liquidity_earnings" db:"liquidity_earnings"`
	AvgNodeCount      float64              `json:"avg_node_count" db:"avg_node_count"`
	RunePriceUSD      float64              `json:"rune_price_usd" db:"rune_price_usd"`
	Pools             []*PoolEarningRecord `json:"pools" db:"-"`
}

// Family returns the data family the record belongs to.
func (r *EarningsRecord) Family() Family { return FamilyEarnings }

// Bucket returns the start and end of the record's time bucket.
func (r *EarningsRecord) Bucket() (time.Time, time.Time) { return r.StartTime, r.EndTime }

// PoolEarningRecord is the earnings of a single pool within an EarningsRecord bucket.
// Corresponds to pool_earnings table in PostgreSQL.
// Unique key: (earnings_history_id, pool).
type PoolEarningRecord struct {
	ID                     int64  `json:"id" db:"id"`
	EarningsHistoryID      int64  `json:"earnings_history_id" db:"earnings_history_id"`
	Pool                   string `json:"pool" db:"pool"`
	AssetLiquidityFees     int64  `json:"asset_liquidity_fees" db:"asset_liquidity_fees"`
	RuneLiquidityFees      int64  `json:"rune_liquidity_fees" db:"rune_liquidity_fees"`
	TotalLiquidityFeesRune int64  `json:"total_liquidity_fees_rune" db:"total_liquidity_fees_rune"`
	SaverEarning           int64  `json:"saver_earning" db:"saver_earning"`
	Rewards                int64  `json:"rewards" db:"rewards"`
	Earnings               int64  `json:"earnings" db:"earnings"`
}
