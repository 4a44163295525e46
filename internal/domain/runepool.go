package domain

import "time"

// RunePoolRecord is one bucket of RUNEPool membership.
// Corresponds to runepool_history table in PostgreSQL.
// Unique key: (start_time, end_time).
type RunePoolRecord struct {
	ID        int64     `json:"id" db:"id"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
	Count     int64     `json:"count" db:"count"`
	Units     int64     `json:"units" db:"units"`
}

// Family returns the data family the record belongs to.
func (r *RunePoolRecord) Family() Family { return FamilyRunePool }

// Bucket returns the start and end of the record's time bucket.
func (r *RunePoolRecord) Bucket() (time.Time, time.Time) { return r.StartTime, r.EndTime }
