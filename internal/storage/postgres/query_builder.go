package postgres

import (
	"fmt"
	"maps"
	"strings"

	"github.com/jackc/pgx/v5"

	"midgard-history/internal/storage"
)

// selectQuery assembles a bounded SELECT over a storage.Table.
// Every value is bound as a named argument; only identifiers taken from the
// Table description are written into the SQL text.
type selectQuery struct {
	table storage.Table
	conds []string
	args  pgx.NamedArgs
}

func newSelect(table storage.Table) *selectQuery {
	return &selectQuery{table: table, args: pgx.NamedArgs{}}
}

// where adds a fixed condition with its bound argument.
func (q *selectQuery) where(cond, name string, value any) *selectQuery {
	q.conds = append(q.conds, cond)
	q.args[name] = value
	return q
}

// build applies spec's filters, ordering and paging.
func (q *selectQuery) build(spec storage.QuerySpec) (string, pgx.NamedArgs, error) {
	t := q.table
	conds := append([]string(nil), q.conds...)
	args := maps.Clone(q.args)

	if spec.DateRange != nil {
		start, end, err := spec.Bounds()
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, t.TimeColumn+" >= @range_start", t.TimeColumn+" <= @range_end")
		args["range_start"] = *start
		args["range_end"] = *end
	} else {
		if spec.StartDate != nil {
			conds = append(conds, t.TimeColumn+" >= @start_date")
			args["start_date"] = *spec.StartDate
		}
		if spec.EndDate != nil {
			conds = append(conds, t.TimeColumn+" <= @end_date")
			args["end_date"] = *spec.EndDate
		}
	}

	if spec.LiquidityGT != nil {
		conds = append(conds, t.LiquidityColumn+" > @liquidity_gt")
		args["liquidity_gt"] = *spec.LiquidityGT
	}

	order, err := orderBy(t, spec)
	if err != nil {
		return "", nil, err
	}

	limit, offset := spec.Pagination()
	args["limit"] = limit
	args["offset"] = offset

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(t.Columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(t.Source)
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)
	sb.WriteString(" LIMIT @limit OFFSET @offset")

	return sb.String(), args, nil
}

// orderBy resolves the ORDER BY clause.
// Without sort_by, rows come newest first unless order says otherwise.
func orderBy(t storage.Table, spec storage.QuerySpec) (string, error) {
	col := t.TimeColumn
	fallback := storage.OrderDesc

	if strings.TrimSpace(spec.SortBy) != "" {
		resolved, err := t.SortColumn(spec.SortBy)
		if err != nil {
			return "", err
		}
		col = resolved
		fallback = storage.OrderAsc
	}

	dir, err := spec.Direction(fallback)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s, %s %s", col, dir, t.TieBreaker, dir), nil
}

// buildSelect builds the read for table with no fixed conditions.
func buildSelect(table storage.Table, spec storage.QuerySpec) (string, pgx.NamedArgs, error) {
	return newSelect(table).build(spec)
}
