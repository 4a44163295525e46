package memory

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"midgard-history/internal/storage"
)

// columns maps db tags of a record type to struct field indexes.
// Query specs are resolved against the same storage.Table allowlists the
// SQL builder uses, so both backends accept and reject the same specs.
type columns map[string]int

func columnsOf[T any]() columns {
	t := reflect.TypeFor[T]()
	cols := make(columns, t.NumField())
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("db")
		if tag != "" && tag != "-" {
			cols[tag] = i
		}
	}
	return cols
}

// resolve maps a column expression of table to a field index.
// Prefixed columns (d.start_time) and expressions (COALESCE(...)) are matched
// through the client-facing names that point at them.
func (c columns) resolve(table storage.Table, expr string) (int, error) {
	bare := expr
	if i := strings.LastIndex(expr, "."); i >= 0 && !strings.Contains(expr, "(") {
		bare = expr[i+1:]
	}
	if idx, ok := c[bare]; ok {
		return idx, nil
	}
	for name, target := range table.Sortable {
		if target != expr {
			continue
		}
		if idx, ok := c[name]; ok {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("%w: no field for column %q", storage.ErrInvalidQuery, expr)
}

// plan is a QuerySpec resolved against a record type.
type plan struct {
	timeField      int
	liquidityField int
	sortField      int
	desc           bool
	start, end     *time.Time
	liquidityGT    *int64
	limit, offset  int64
}

func newPlan(table storage.Table, cols columns, spec storage.QuerySpec) (plan, error) {
	var p plan
	var err error

	if p.start, p.end, err = spec.Bounds(); err != nil {
		return p, err
	}
	if p.timeField, err = cols.resolve(table, table.TimeColumn); err != nil {
		return p, err
	}
	if p.liquidityField, err = cols.resolve(table, table.LiquidityColumn); err != nil {
		return p, err
	}

	sortExpr := table.TimeColumn
	fallback := storage.OrderDesc
	if spec.SortBy != "" {
		if sortExpr, err = table.SortColumn(spec.SortBy); err != nil {
			return p, err
		}
		fallback = storage.OrderAsc
	}
	if p.sortField, err = cols.resolve(table, sortExpr); err != nil {
		return p, err
	}
	dir, err := spec.Direction(fallback)
	if err != nil {
		return p, err
	}
	p.desc = dir == storage.OrderDesc

	p.liquidityGT = spec.LiquidityGT
	p.limit, p.offset = spec.Pagination()
	return p, nil
}

// apply filters, orders and pages rows. rows must be in id order, which
// serves as the tiebreaker in the same direction as the sort.
func apply[T any](p plan, rows []*T) []*T {
	matched := make([]*T, 0, len(rows))
	for _, r := range rows {
		v := reflect.ValueOf(r).Elem()
		ts := v.Field(p.timeField).Interface().(time.Time)
		if p.start != nil && ts.Before(*p.start) {
			continue
		}
		if p.end != nil && ts.After(*p.end) {
			continue
		}
		if p.liquidityGT != nil && compareValues(v.Field(p.liquidityField), reflect.ValueOf(*p.liquidityGT)) <= 0 {
			continue
		}
		matched = append(matched, r)
	}

	slices.SortStableFunc(matched, func(a, b *T) int {
		c := compareValues(reflect.ValueOf(a).Elem().Field(p.sortField), reflect.ValueOf(b).Elem().Field(p.sortField))
		if p.desc {
			return -c
		}
		return c
	})
	if p.desc {
		reverseTies(matched, p.sortField)
	}

	if p.offset >= int64(len(matched)) {
		return []*T{}
	}
	end := min(p.offset+p.limit, int64(len(matched)))
	return matched[p.offset:end]
}

// reverseTies flips each run of equal sort values so ties are in descending id order.
func reverseTies[T any](rows []*T, field int) {
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && compareValues(reflect.ValueOf(rows[i]).Elem().Field(field), reflect.ValueOf(rows[j]).Elem().Field(field)) == 0 {
			j++
		}
		slices.Reverse(rows[i:j])
		i = j
	}
}

func compareValues(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		if b.Kind() == reflect.Float64 {
			return cmp.Compare(float64(a.Int()), b.Float())
		}
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Float32, reflect.Float64:
		if b.Kind() == reflect.Int64 {
			return cmp.Compare(a.Float(), float64(b.Int()))
		}
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return strings.Compare(a.String(), b.String())
	}
	if t, ok := a.Interface().(time.Time); ok {
		return t.Compare(b.Interface().(time.Time))
	}
	return 0
}
