package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// Schema names. The live database is always main; archives are attached
// under their own alias.
const (
	schemaMain  = "main"
	aliasExport = "export"
	aliasImport = "import"
)

// Table listing queries. The catalog function is preferred; the
// sqlite_master form serves engines built without it. The fallback takes the
// quoted schema name as its only verb.
var (
	tableListQuery    = `SELECT name FROM pragma_table_list WHERE schema = ? AND type = 'table' ORDER BY name`
	tableListFallback = `SELECT name FROM %s.sqlite_master WHERE type = 'table' ORDER BY name`
)

// listTables returns the base tables of schema, engine tables excluded.
// Metadata tables are included; callers filter with types.IsSystemTable.
func (b *Backend) listTables(ctx context.Context, q querier, schema string) ([]string, error) {
	names, err := queryNames(ctx, q, tableListQuery, schema)
	if err != nil {
		b.log.WithError(err).WithField("schema", schema).Debug("table catalog unavailable, using sqlite_master")
		names, err = queryNames(ctx, q, fmt.Sprintf(tableListFallback, quoteIdent(schema)))
		if err != nil {
			return nil, fmt.Errorf("listing tables in %s: %w", schema, err)
		}
	}

	out := names[:0]
	for _, n := range names {
		if isEngineTable(n) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// userTables returns the non-system tables of schema.
func (b *Backend) userTables(ctx context.Context, q querier, schema string) ([]string, error) {
	names, err := b.listTables(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if !types.IsSystemTable(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// resolveTable returns the stored spelling of the table or view in schema
// whose name matches name case-insensitively, or "" if there is none.
func resolveTable(ctx context.Context, q querier, schema, name string) (string, error) {
	query := fmt.Sprintf(
		"SELECT name FROM %s.sqlite_master WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE LIMIT 1",
		quoteIdent(schema))
	var stored string
	err := q.QueryRowContext(ctx, query, name).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up table %s in %s: %w", name, schema, err)
	}
	return stored, nil
}

// tableExists reports whether schema has a table or view called name,
// compared case-insensitively.
func tableExists(ctx context.Context, q querier, schema, name string) (bool, error) {
	stored, err := resolveTable(ctx, q, schema, name)
	return stored != "", err
}

// isEngineTable matches the engine's own catalog tables.
func isEngineTable(name string) bool {
	return len(name) >= 7 && strings.EqualFold(name[:7], "sqlite_")
}
