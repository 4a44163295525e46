package domain

import "time"

// PoolActivityRecord joins a depth bucket with the swap bucket of the same pool and window.
// Swap fields are zero when no swap bucket exists for the window.
// Read-only: derived from depth_history LEFT JOIN swaps_history.
type PoolActivityRecord struct {
	Pool           string    `json:"pool" db:"pool"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	AssetDepth     int64     `json:"asset_depth" db:"asset_depth"`
	RuneDepth      int64     `json:"rune_depth" db:"rune_depth"`
	AssetPrice     float64   `json:"asset_price" db:"asset_price"`
	LiquidityUnits int64     `json:"liquidity_units" db:"liquidity_units"`
	SwapCount      int64     `json:"swap_count" db:"swap_count"`
	SwapVolume     int64     `json:"swap_volume" db:"swap_volume"`
	SwapFees       int64     `json:"swap_fees" db:"swap_fees"`
	VolumeUSD      float64   `json:"volume_usd" db:"volume_usd"`
}
