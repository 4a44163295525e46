package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"midgard-history/internal/storage"
)

const dateOnly = "2006-01-02"

// ParseQuerySpec reads the shared filter, sort and paging parameters.
// Unknown sort columns and order values are rejected later by the query builder.
func ParseQuerySpec(q url.Values) (storage.QuerySpec, error) {
	var spec storage.QuerySpec
	var err error

	if spec.StartDate, err = optionalTime(q, "start_date"); err != nil {
		return spec, err
	}
	if spec.EndDate, err = optionalTime(q, "end_date"); err != nil {
		return spec, err
	}

	if raw := strings.TrimSpace(q.Get("date_range")); raw != "" {
		rng, err := parseDateRange(raw)
		if err != nil {
			return spec, err
		}
		spec.DateRange = &rng
	}

	if spec.LiquidityGT, err = optionalInt(q, "liquidity_gt"); err != nil {
		return spec, err
	}
	if spec.Page, err = optionalInt(q, "page"); err != nil {
		return spec, err
	}
	if spec.Limit, err = optionalInt(q, "limit"); err != nil {
		return spec, err
	}

	spec.SortBy = strings.TrimSpace(q.Get("sort_by"))
	spec.Order = strings.TrimSpace(q.Get("order"))
	return spec, nil
}

// parseDateRange parses "start,end".
func parseDateRange(raw string) (storage.TimeRange, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return storage.TimeRange{}, fmt.Errorf("invalid date_range %q: want start,end", raw)
	}
	start, err := parseTime(parts[0])
	if err != nil {
		return storage.TimeRange{}, fmt.Errorf("invalid date_range start: %w", err)
	}
	end, err := parseTime(parts[1])
	if err != nil {
		return storage.TimeRange{}, fmt.Errorf("invalid date_range end: %w", err)
	}
	if end.Before(start) {
		return storage.TimeRange{}, fmt.Errorf("invalid date_range: end is before start")
	}
	return storage.TimeRange{Start: start, End: end}, nil
}

// parseTime accepts RFC3339 or a bare date, which means midnight UTC.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD", raw)
	}
	return t, nil
}

func optionalTime(q url.Values, name string) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &t, nil
}

func optionalInt(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not an integer", name, raw)
	}
	return &v, nil
}
