// Package domain holds the record types persisted for each Midgard metric family.
package domain

import "time"

// Family identifies one upstream metric family.
// Each family has its own fetch endpoint, record shape and table.
type Family string

const (
	FamilyDepth    Family = "depth"
	FamilySwaps    Family = "swaps"
	FamilyEarnings Family = "earnings"
	FamilyRunePool Family = "runepool"
)

// Families lists every family in ingestion order.
var Families = []Family{FamilyDepth, FamilySwaps, FamilyEarnings, FamilyRunePool}

func (f Family) String() string {
	return string(f)
}

// PoolScoped reports whether the family is fetched once per configured pool.
func (f Family) PoolScoped() bool {
	return f == FamilyDepth || f == FamilySwaps
}

// IntervalRecord is implemented by every normalized interval record.
type IntervalRecord interface {
	Family() Family
	Bucket() (start, end time.Time)
}
