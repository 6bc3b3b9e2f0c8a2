package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
)

// record is one row keyed by column name. Archive rows are read this way so
// that archives missing optional columns still import.
type record map[string]any

// queryRecords runs query and collects every row as a record, along with the
// column order.
func queryRecords(ctx context.Context, q querier, query string, args ...any) ([]string, []record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("reading columns: %w", err)
	}

	var out []record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scanning row: %w", err)
		}
		rec := make(record, len(cols))
		for i, c := range cols {
			rec[c] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

// queryNames runs a single-column query and returns the values as strings.
func queryNames(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// String returns the column as text; missing and NULL columns are empty.
func (r record) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// encodeTables serializes a selected-tables list; an empty list is NULL.
func encodeTables(tables []string) (any, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tables)
	if err != nil {
		return nil, fmt.Errorf("encoding selected tables: %w", err)
	}
	return string(data), nil
}

// decodeTables parses a selected-tables column.
func decodeTables(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var tables []string
	if err := json.Unmarshal([]byte(s), &tables); err != nil {
		return nil, fmt.Errorf("decoding selected tables: %w", err)
	}
	return tables, nil
}
