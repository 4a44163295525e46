package domain

import "time"

// DepthRecord is one time bucket of pool depth and price data.
// Corresponds to depth_history table in PostgreSQL.
// Unique key: (pool, start_time, end_time).
type DepthRecord struct {
	ID             int64     `json:"id" db:"id"`
	Pool           string    `json:"pool" db:"pool"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	AssetDepth     int64     `json:"asset_depth" db:"asset_depth"`
	RuneDepth      int64     `json:"rune_depth" db:"rune_depth"`
	AssetPrice     float64   `json:"asset_price" db:"asset_price"`
	AssetPriceUSD  float64   `json:"asset_price_usd" db:"asset_price_usd"`
	LiquidityUnits int64     `json:"liquidity_units" db:"liquidity_units"`
	MembersCount   int64     `json:"members_count" db:"members_count"`
	SynthUnits     int64     `json:"synth_units" db:"synth_units"`
	SynthSupply    int64     `json:"synth_supply" db:"synth_supply"`
	Units          int64     `json:"units" db:"units"`
	Luvi           float64   `json:"luvi" db:"luvi"`
}

// Family returns the data family the record belongs to.
func (r *DepthRecord) Family() Family { return FamilyDepth }

// Bucket returns the start and end of the record's time bucket.
func (r *DepthRecord) Bucket() (time.Time, time.Time) { return r.StartTime, r.EndTime }
