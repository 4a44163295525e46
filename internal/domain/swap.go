package domain

import "time"

// SwapRecord is one time bucket of swap counts, volumes and fees for a pool.
// Corresponds to swaps_history table in PostgreSQL.
// Unique key: (pool, start_time, end_time).
type SwapRecord struct {
	ID             int64     `json:"id" db:"id"`
	Pool           string    `json:"pool" db:"pool"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	ToAssetCount   int64     `json:"to_asset_count" db:"to_asset_count"`
	ToRuneCount    int64     `json:"to_rune_count" db:"to_rune_count"`
	TotalCount     int64     `json:"total_count" db:"total_count"`
	ToAssetVolume  int64     `json:"to_asset_volume" db:"to_asset_volume"`
	ToRuneVolume   int64     `json:"to_rune_volume" db:"to_rune_volume"`
	TotalVolume    int64     `json:"total_volume" db:"total_volume"`
	ToAssetFees    int64     `json:"to_asset_fees" db:"to_asset_fees"`
	ToRuneFees     int64     `json:"to_rune_fees" db:"to_rune_fees"`
	TotalFees      int64     `json:"total_fees" db:"total_fees"`
	TotalVolumeUSD float64   `json:"total_volume_usd" db:"total_volume_usd"`
	RunePriceUSD   float64   `json:"rune_price_usd" db:"rune_price_usd"`
	AverageSlip    float64   `json:"average_slip" db:"average_slip"`
}

// Family returns the data family the record belongs to.
func (r *SwapRecord) Family() Family { return FamilySwaps }

// Bucket returns the start and end of the record's time bucket.
func (r *SwapRecord) Bucket() (time.Time, time.Time) { return r.StartTime, r.EndTime }
