package types

import "strings"

// Metadata table names. Every system table starts with SystemTablePrefix.
const (
	TableFiles         = "_files"
	TableTables        = "_tables"
	TableNotebooks     = "_notebooks"
	TableNotebookCells = "_notebook_cells"
	TableQueries       = "_queries"
	TableQueryTables   = "_query_tables"

	// Legacy archive tables written by the document export flow.
	TableDocuments     = "_documents"
	TableDocumentCells = "_document_cells"
)

// SystemTablePrefix marks tables owned by the store rather than the user.
const SystemTablePrefix = "_"

// engineTablePrefix marks tables the SQL engine maintains internally.
const engineTablePrefix = "sqlite_"

// SystemTableNames lists the metadata tables in creation order.
var SystemTableNames = []string{
	TableFiles,
	TableTables,
	TableNotebooks,
	TableNotebookCells,
	TableQueries,
	TableQueryTables,
}

// IsSystemTable reports whether name is reserved for metadata or for the
// engine itself. Such tables are never copied as user data.
func IsSystemTable(name string) bool {
	return strings.HasPrefix(name, SystemTablePrefix) ||
		strings.HasPrefix(strings.ToLower(name), engineTablePrefix)
}
