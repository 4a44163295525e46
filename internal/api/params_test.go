package api

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuerySpec_Empty(t *testing.T) {
	spec, err := ParseQuerySpec(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, spec.StartDate)
	assert.Nil(t, spec.EndDate)
	assert.Nil(t, spec.DateRange)
	assert.Nil(t, spec.LiquidityGT)
	assert.Nil(t, spec.Page)
	assert.Nil(t, spec.Limit)
	assert.Empty(t, spec.SortBy)
}

func TestParseQuerySpec_AllParameters(t *testing.T) {
	q, err := url.ParseQuery("start_date=2024-01-01&end_date=2024-01-31T12:00:00%2B02:00" +
		"&date_range=2024-02-01,2024-02-10T00:00:00Z&liquidity_gt=500&sort_by=units&order=DESC&page=2&limit=50")
	require.NoError(t, err)

	spec, err := ParseQuerySpec(q)
	require.NoError(t, err)

	require.NotNil(t, spec.StartDate)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *spec.StartDate)
	require.NotNil(t, spec.EndDate)
	assert.Equal(t, time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC), *spec.EndDate)

	require.NotNil(t, spec.DateRange)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), spec.DateRange.Start)
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), spec.DateRange.End)

	assert.Equal(t, int64(500), *spec.LiquidityGT)
	assert.Equal(t, "units", spec.SortBy)
	assert.Equal(t, "DESC", spec.Order)
	assert.Equal(t, int64(2), *spec.Page)
	assert.Equal(t, int64(50), *spec.Limit)
}

func TestParseQuerySpec_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bad start_date", "start_date=yesterday"},
		{"bad end_date", "end_date=2024-13-01"},
		{"date_range with one value", "date_range=2024-01-01"},
		{"date_range with three values", "date_range=2024-01-01,2024-01-02,2024-01-03"},
		{"date_range bad value", "date_range=2024-01-01,soon"},
		{"inverted date_range", "date_range=2024-02-01,2024-01-01"},
		{"non-integer liquidity_gt", "liquidity_gt=1.5"},
		{"non-integer page", "page=two"},
		{"non-integer limit", "limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			_, err = ParseQuerySpec(q)
			assert.Error(t, err)
		})
	}
}

func TestParseQuerySpec_NegativeValuesPassThrough(t *testing.T) {
	spec, err := ParseQuerySpec(url.Values{"page": {"-3"}, "limit": {"-1"}})
	require.NoError(t, err)

	limit, offset := spec.Pagination()
	assert.Equal(t, int64(1), limit)
	assert.Equal(t, int64(0), offset)
}
