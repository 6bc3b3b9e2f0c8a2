package types

import (
	"errors"
	"fmt"
	"strings"
)

// Store operation errors.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidID        = errors.New("invalid entity ID")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidKind      = errors.New("invalid notebook kind")
	ErrInvalidCellType  = errors.New("invalid cell type")
	ErrInvalidSQL       = errors.New("sql must not be empty")
	ErrInvalidDataMode  = errors.New("invalid data mode")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrTableExists      = errors.New("table already exists")
	ErrInvalidLoadMode  = errors.New("invalid load mode")
	ErrInvalidFile      = errors.New("file is not loadable CSV")
)

// Archive errors.
var (
	ErrNoNotebook = errors.New("no notebook found in archive")
)

// Access errors.
var (
	ErrNoTablesSelected = errors.New("no tables are selected for this cell; select at least one table")
	ErrAccessDenied     = errors.New("query references tables not selected for this cell")
)

// AccessError reports every table a query reads that its cell has not
// selected. errors.Is(err, ErrAccessDenied) holds for any AccessError.
type AccessError struct {
	Tables []string
}

func (e *AccessError) Error() string {
	quoted := make([]string, len(e.Tables))
	for i, t := range e.Tables {
		quoted[i] = fmt.Sprintf("'%s'", t)
	}
	return fmt.Sprintf("query references table(s) %s which are not selected for this cell; select these tables or modify the query",
		strings.Join(quoted, ", "))
}

// Is matches ErrAccessDenied.
func (e *AccessError) Is(target error) bool {
	return target == ErrAccessDenied
}
