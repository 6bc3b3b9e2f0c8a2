package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/quackbook/internal/sqlref"
	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// Query runs query after checking it against allowed. It returns at most
// limit rows along with the full row count; limit is clamped to
// [1, MaxQueryLimit] and zero means DefaultQueryLimit.
func (b *Backend) Query(ctx context.Context, query string, allowed []string, limit int) (*types.QueryResult, error) {
	query = trimStatement(query)
	if query == "" {
		return nil, types.ErrInvalidSQL
	}
	if err := sqlref.ValidateAccessWith(b.extractor, query, allowed); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	db, release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := shapeQuery(ctx, db, query, limit)
	if err != nil {
		return nil, err
	}
	b.log.WithField("rows", len(res.Rows)).WithField("total", res.RowCount).Debug("query ran")
	return res, nil
}

// shapeQuery counts the rows of query and returns the first limit of them
// with inferred column types.
func shapeQuery(ctx context.Context, q querier, query string, limit int) (*types.QueryResult, error) {
	var total int
	if err := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS subquery", query)).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	cols, recs, err := queryRecords(ctx, q,
		fmt.Sprintf("SELECT * FROM (%s) AS subquery LIMIT %d", query, limit))
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	res := &types.QueryResult{
		Columns:  make([]types.Column, len(cols)),
		Rows:     make([][]any, 0, len(recs)),
		RowCount: total,
	}
	for _, rec := range recs {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = normalizeValue(rec[c])
		}
		res.Rows = append(res.Rows, row)
	}
	for i, c := range cols {
		res.Columns[i] = types.Column{Name: c, Type: inferType(res.Rows, i)}
	}
	res.Truncated = total > len(res.Rows)
	return res, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return types.DefaultQueryLimit
	case limit > types.MaxQueryLimit:
		return types.MaxQueryLimit
	default:
		return limit
	}
}

// normalizeValue turns driver values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// inferType names the type of column i from its first non-null value.
func inferType(rows [][]any, i int) string {
	for _, row := range rows {
		switch row[i].(type) {
		case nil:
			continue
		case int64, int:
			return "integer"
		case float64:
			return "number"
		case bool:
			return "boolean"
		case string:
			return "string"
		default:
			return "unknown"
		}
	}
	return "null"
}
