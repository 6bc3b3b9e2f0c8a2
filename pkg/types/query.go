package types

import "time"

// SavedQuery is a named SQL statement independent of any notebook.
// ReferencedTables is derived from SQL each time it changes; Warnings lists
// referenced tables the store does not track.
type SavedQuery struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	SQL              string    `json:"sql"`
	ReferencedTables []string  `json:"referenced_tables"`
	Warnings         []string  `json:"warnings,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// QueryInput describes a saved query to create or update. Both fields are
// required; Update replaces them.
type QueryInput struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// Query limits.
const (
	DefaultQueryLimit = 1000
	MaxQueryLimit     = 10000
)

// Column describes one result column. Type is inferred from the first
// non-null value.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult is the shaped output of running a cell's SQL.
type QueryResult struct {
	Columns   []Column `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated"`
	RowCount  int      `json:"row_count"`
}
