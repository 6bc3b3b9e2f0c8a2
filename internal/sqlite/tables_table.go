package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

var _ types.TableStore = (*tablesTable)(nil)

// tablesTable tracks provenance rows in _tables and creates or drops the
// data tables they describe. The engine catalog, not _tables, decides
// whether a table exists.
type tablesTable struct {
	backend *Backend
}

const selectUserTable = `SELECT id, name, source_file_id, created_at FROM _tables`

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name may be used for a user data table.
// System-prefixed names are reserved.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name) && !types.IsSystemTable(name)
}

// Register records provenance for a data table. sourceFileID may be empty.
func (tt *tablesTable) Register(ctx context.Context, name, sourceFileID string) (*types.UserTable, error) {
	if !ValidTableName(name) {
		return nil, types.ErrInvalidTableName
	}
	db, release, err := tt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	ut := &types.UserTable{
		ID:           newID(),
		Name:         name,
		SourceFileID: sourceFileID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := insertUserTable(ctx, db, ut); err != nil {
		return nil, err
	}
	return ut, nil
}

// Get returns the provenance row for name.
func (tt *tablesTable) Get(ctx context.Context, name string) (*types.UserTable, error) {
	if name == "" {
		return nil, types.ErrInvalidTableName
	}
	db, release, err := tt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return getUserTable(ctx, db, name)
}

// List returns every provenance row, newest first.
func (tt *tablesTable) List(ctx context.Context) ([]*types.UserTable, error) {
	db, release, err := tt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, selectUserTable+" ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var out []*types.UserTable
	for rows.Next() {
		ut, err := hydrateUserTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ut)
	}
	return out, rows.Err()
}

// Exists reports whether the live database has a table or view called name.
func (tt *tablesTable) Exists(ctx context.Context, name string) (bool, error) {
	db, release, err := tt.backend.acquire()
	if err != nil {
		return false, err
	}
	defer release()

	return tableExists(ctx, db, schemaMain, name)
}

// CreateFromQuery materializes sql as table name and records it with no
// source file.
func (tt *tablesTable) CreateFromQuery(ctx context.Context, name, query string) (*types.UserTable, error) {
	if !ValidTableName(name) {
		return nil, types.ErrInvalidTableName
	}
	query = trimStatement(query)
	if query == "" {
		return nil, types.ErrInvalidSQL
	}

	db, release, err := tt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := tableExists(ctx, tx, schemaMain, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", types.ErrTableExists, name)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", quoteIdent(name), query)); err != nil {
		return nil, fmt.Errorf("creating table %s: %w", name, err)
	}
	ut := &types.UserTable{ID: newID(), Name: name, CreatedAt: time.Now().UTC()}
	if err := insertUserTable(ctx, tx, ut); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing table %s: %w", name, err)
	}
	return ut, nil
}

// Drop removes the data table and its provenance row. Returns ErrNotFound
// if neither exists.
func (tt *tablesTable) Drop(ctx context.Context, name string) error {
	if !ValidTableName(name) {
		return types.ErrInvalidTableName
	}
	db, release, err := tt.backend.acquire()
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := tableExists(ctx, tx, schemaMain, name)
	if err != nil {
		return err
	}
	if exists {
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(name)); err != nil {
			return fmt.Errorf("dropping table %s: %w", name, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM _tables WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting table metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if !exists && n == 0 {
		return types.ErrNotFound
	}
	return tx.Commit()
}

func insertUserTable(ctx context.Context, q querier, ut *types.UserTable) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO _tables (id, name, source_file_id, created_at) VALUES (?, ?, ?, ?)",
		ut.ID, ut.Name, nullable(ut.SourceFileID), formatTime(ut.CreatedAt),
	)
	if err != nil {
		var known bool
		if ierr := q.QueryRowContext(ctx, "SELECT 1 FROM _tables WHERE name = ?", ut.Name).Scan(&known); ierr == nil {
			return fmt.Errorf("%w: %s", types.ErrTableExists, ut.Name)
		}
		return fmt.Errorf("inserting table metadata: %w", err)
	}
	return nil
}

// getUserTable looks name up case-insensitively; the column collates
// NOCASE.
func getUserTable(ctx context.Context, q querier, name string) (*types.UserTable, error) {
	return hydrateUserTable(q.QueryRowContext(ctx, selectUserTable+" WHERE name = ?", name))
}

func hydrateUserTable(row scanner) (*types.UserTable, error) {
	var ut types.UserTable
	var source sql.NullString
	var createdAt string
	err := row.Scan(&ut.ID, &ut.Name, &source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning table metadata: %w", err)
	}
	ut.SourceFileID = source.String
	if ut.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &ut, nil
}

// trimStatement drops surrounding space and trailing semicolons.
func trimStatement(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	return s
}
