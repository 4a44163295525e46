package storage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Paging bounds applied to every read.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Sort directions.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// TimeRange is an inclusive [Start, End] window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// QuerySpec carries the optional read parameters shared by every history surface.
// A nil field means the parameter was not supplied.
type QuerySpec struct {
	DateRange   *TimeRange
	StartDate   *time.Time
	EndDate     *time.Time
	LiquidityGT *int64
	SortBy      string
	Order       string
	Page        *int64
	Limit       *int64
}

// Bounds returns the effective time filter.
// DateRange wins over StartDate/EndDate when both are present.
func (s QuerySpec) Bounds() (start, end *time.Time, err error) {
	if s.DateRange != nil {
		if s.DateRange.End.Before(s.DateRange.Start) {
			return nil, nil, fmt.Errorf("%w: date_range end precedes start", ErrInvalidQuery)
		}
		return &s.DateRange.Start, &s.DateRange.End, nil
	}
	return s.StartDate, s.EndDate, nil
}

// Pagination returns the clamped limit and the row offset.
// Limit defaults to DefaultLimit and is clamped to [1, MaxLimit].
// Negative pages are treated as page 0. Pages are capped so that
// offset+limit never exceeds math.MaxInt64.
func (s QuerySpec) Pagination() (limit, offset int64) {
	limit = DefaultLimit
	if s.Limit != nil {
		limit = min(max(*s.Limit, 1), MaxLimit)
	}

	var page int64
	if s.Page != nil && *s.Page > 0 {
		page = min(*s.Page, math.MaxInt64/limit-1)
	}

	return limit, page * limit
}

// Direction resolves Order to ASC or DESC, using fallback when Order is empty.
func (s QuerySpec) Direction(fallback string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s.Order)) {
	case "":
		return fallback, nil
	case "asc":
		return OrderAsc, nil
	case "desc":
		return OrderDesc, nil
	default:
		return "", fmt.Errorf("%w: order must be asc or desc, got %q", ErrInvalidQuery, s.Order)
	}
}

// Key returns a canonical representation of the spec, used for cache keys.
// Two specs producing the same query produce the same key.
func (s QuerySpec) Key() string {
	start, end, err := s.Bounds()
	if err != nil {
		// Keep an invalid range distinguishable from an unfiltered read.
		start, end = &s.DateRange.Start, &s.DateRange.End
	}
	limit, offset := s.Pagination()

	parts := []string{
		"from=" + formatTime(start),
		"to=" + formatTime(end),
		"liq=" + formatInt(s.LiquidityGT),
		"sort=" + strings.ToLower(strings.TrimSpace(s.SortBy)),
		"order=" + strings.ToLower(strings.TrimSpace(s.Order)),
		"limit=" + strconv.FormatInt(limit, 10),
		"offset=" + strconv.FormatInt(offset, 10),
	}
	return strings.Join(parts, "&")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UTC().UnixNano(), 10)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
