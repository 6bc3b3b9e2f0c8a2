package types

import (
	"context"
	"errors"
	"io"
)

// Workspace owns one live embedded database and everything stored in it.
// Callers open it with a Config, use the stores, and close it when done.
type Workspace interface {
	// Open creates DataDir and the export directory if needed, opens the
	// live database, and ensures the metadata schema. Returns
	// ErrAlreadyOpen if called twice without Close.
	Open(config Config) error

	// Close releases the database. Idempotent.
	Close() error

	Notebooks() NotebookStore
	Files() FileStore
	Tables() TableStore
	Queries() QueryStore

	// Query runs sql after checking it against allowed and returns at most
	// limit rows. A limit of zero uses DefaultQueryLimit.
	Query(ctx context.Context, sql string, allowed []string, limit int) (*QueryResult, error)

	// Export writes an archive of the notebook and the data selected by
	// mode. Returns ErrNotFound if the notebook does not exist.
	Export(ctx context.Context, notebookID string, mode DataMode) (*ExportResult, error)

	// Import merges an archive read from r. Returns ErrNoNotebook if the
	// archive carries no notebook row.
	Import(ctx context.Context, r io.Reader) (*ImportResult, error)

	// ImportFile merges the archive at path. The file is copied first and
	// never modified.
	ImportFile(ctx context.Context, path string) (*ImportResult, error)
}

// NotebookStore persists notebooks and their ordered cells.
type NotebookStore interface {
	// Create stores a new notebook with fresh ids for it and its cells.
	Create(ctx context.Context, in NotebookInput) (*Notebook, error)

	// Get returns the notebook with its cells ordered by index.
	// Returns ErrNotFound if no notebook has that id.
	Get(ctx context.Context, id string) (*Notebook, error)

	// List returns notebooks without cells, most recently updated first.
	// An empty kind lists every kind.
	List(ctx context.Context, kind string) ([]*Notebook, error)

	// Update applies in and returns the result. Replaced cells are deleted
	// and reinserted with positions 0..n-1.
	Update(ctx context.Context, id string, in NotebookUpdate) (*Notebook, error)

	// Delete removes the notebook and all of its cells.
	Delete(ctx context.Context, id string) error
}

// FileStore records uploaded files.
type FileStore interface {
	Register(ctx context.Context, filename, path string) (*StoredFile, error)
	Get(ctx context.Context, id string) (*StoredFile, error)
	List(ctx context.Context) ([]*StoredFile, error)
}

// TableStore tracks provenance of data tables and creates or drops them.
type TableStore interface {
	// Register records provenance for an existing data table.
	Register(ctx context.Context, name, sourceFileID string) (*UserTable, error)

	// Get returns the provenance row for name, compared case-insensitively.
	Get(ctx context.Context, name string) (*UserTable, error)

	List(ctx context.Context) ([]*UserTable, error)

	// Exists reports whether a table of that name exists in the live
	// database, tracked or not.
	Exists(ctx context.Context, name string) (bool, error)

	// CreateFromQuery materializes the result of sql as a new table and
	// records it. Returns ErrTableExists if the name is taken.
	CreateFromQuery(ctx context.Context, name, sql string) (*UserTable, error)

	// CreateFromFile loads the CSV file registered as fileID. The first
	// record is the header. LoadModeCreate makes a new table name, infers
	// column types and records fileID as its source; ErrTableExists if the
	// name is taken. LoadModeAppend inserts into the existing table name,
	// whose column count must match the header; ErrNotFound if it does not
	// exist. Either way the load is one transaction.
	CreateFromFile(ctx context.Context, name, fileID string, mode LoadMode) (*UserTable, error)

	// Schema returns the columns of a live data table with their declared
	// types, lower-cased.
	Schema(ctx context.Context, name string) ([]Column, error)

	// Preview returns up to limit rows of a live data table. A limit of
	// zero uses DefaultPreviewLimit; larger values cap at MaxPreviewLimit.
	Preview(ctx context.Context, name string, limit int) (*QueryResult, error)

	// Drop removes the data table and its provenance row. Source files are
	// left in place.
	Drop(ctx context.Context, name string) error
}

// QueryStore persists saved queries and their table references.
type QueryStore interface {
	Create(ctx context.Context, in QueryInput) (*SavedQuery, error)
	Get(ctx context.Context, id string) (*SavedQuery, error)
	List(ctx context.Context) ([]*SavedQuery, error)
	Update(ctx context.Context, id string, in QueryInput) (*SavedQuery, error)
	Delete(ctx context.Context, id string) error
}

// ReferenceExtractor finds the tables a SQL statement reads from.
type ReferenceExtractor interface {
	Extract(sql string) []string
}

// Workspace lifecycle errors.
var (
	ErrBackendClosed = errors.New("workspace is closed")
	ErrAlreadyOpen   = errors.New("workspace is already open")
)
