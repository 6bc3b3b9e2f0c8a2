package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema DDL for the metadata tables. Timestamps are text in timeLayout.
const (
	createFiles = `CREATE TABLE IF NOT EXISTS _files (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    path TEXT NOT NULL,
    uploaded_at TEXT NOT NULL
);`

	createTables = `CREATE TABLE IF NOT EXISTS _tables (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE COLLATE NOCASE,
    source_file_id TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY (source_file_id) REFERENCES _files(id)
);`

	createNotebooks = `CREATE TABLE IF NOT EXISTS _notebooks (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL DEFAULT 'notebook',
    name TEXT NOT NULL,
    markdown TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createNotebookCells = `CREATE TABLE IF NOT EXISTS _notebook_cells (
    id TEXT PRIMARY KEY,
    notebook_id TEXT NOT NULL,
    cell_index INTEGER NOT NULL,
    cell_type TEXT NOT NULL,
    sql_text TEXT,
    markdown_text TEXT,
    chart_config TEXT,
    selected_tables TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY (notebook_id) REFERENCES _notebooks(id)
);`

	createQueries = `CREATE TABLE IF NOT EXISTS _queries (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    sql TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createQueryTables = `CREATE TABLE IF NOT EXISTS _query_tables (
    query_id TEXT NOT NULL,
    table_name TEXT NOT NULL,
    PRIMARY KEY (query_id, table_name),
    FOREIGN KEY (query_id) REFERENCES _queries(id)
);`
)

// Index DDL for common lookups.
const (
	idxNotebooksKind     = `CREATE INDEX IF NOT EXISTS idx_notebooks_kind ON _notebooks(kind, updated_at);`
	idxCellsNotebook     = `CREATE INDEX IF NOT EXISTS idx_notebook_cells_notebook ON _notebook_cells(notebook_id, cell_index);`
	idxTablesSourceFile  = `CREATE INDEX IF NOT EXISTS idx_tables_source_file ON _tables(source_file_id);`
	idxQueryTablesByName = `CREATE INDEX IF NOT EXISTS idx_query_tables_table ON _query_tables(table_name);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createFiles,
	createTables,
	createNotebooks,
	createNotebookCells,
	createQueries,
	createQueryTables,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxNotebooksKind,
	idxCellsNotebook,
	idxTablesSourceFile,
	idxQueryTablesByName,
}

// ensureSchema creates any missing metadata table or index.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	return nil
}
