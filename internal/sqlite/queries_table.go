package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

var _ types.QueryStore = (*queriesTable)(nil)

// queriesTable persists saved queries. Table references are derived from
// the SQL and rewritten whenever it changes.
type queriesTable struct {
	backend *Backend
}

const selectQuery = `SELECT id, name, sql, created_at, updated_at FROM _queries`

// Create stores a saved query and its table references.
func (qt *queriesTable) Create(ctx context.Context, in types.QueryInput) (*types.SavedQuery, error) {
	name, text, err := validateQueryInput(in)
	if err != nil {
		return nil, err
	}
	db, release, err := qt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now().UTC()
	id := newID()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO _queries (id, name, sql, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, name, text, formatTime(now), formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("inserting query: %w", err)
	}
	if err := qt.writeReferences(ctx, tx, id, text); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing query: %w", err)
	}
	return getSavedQuery(ctx, db, id)
}

// Get returns the saved query with its references and a warning for each
// referenced table the live database lacks.
func (qt *queriesTable) Get(ctx context.Context, id string) (*types.SavedQuery, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := qt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return getSavedQuery(ctx, db, id)
}

// List returns all saved queries, most recently updated first.
func (qt *queriesTable) List(ctx context.Context) ([]*types.SavedQuery, error) {
	db, release, err := qt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	ids, err := queryNames(ctx, db, "SELECT id FROM _queries ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	out := make([]*types.SavedQuery, 0, len(ids))
	for _, id := range ids {
		q, err := getSavedQuery(ctx, db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Update replaces the name and SQL and recomputes the references.
func (qt *queriesTable) Update(ctx context.Context, id string, in types.QueryInput) (*types.SavedQuery, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	name, text, err := validateQueryInput(in)
	if err != nil {
		return nil, err
	}
	db, release, err := qt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE _queries SET name = ?, sql = ?, updated_at = ? WHERE id = ?",
		name, text, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating query: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("checking update result: %w", err)
	} else if n == 0 {
		return nil, types.ErrNotFound
	}
	if err := qt.writeReferences(ctx, tx, id, text); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing query: %w", err)
	}
	return getSavedQuery(ctx, db, id)
}

// Delete removes the saved query and its references.
func (qt *queriesTable) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	db, release, err := qt.backend.acquire()
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM _query_tables WHERE query_id = ?", id); err != nil {
		return fmt.Errorf("deleting query references: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM _queries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return tx.Commit()
}

func validateQueryInput(in types.QueryInput) (name, text string, err error) {
	name = strings.TrimSpace(in.Name)
	if name == "" {
		return "", "", types.ErrInvalidName
	}
	text = strings.TrimSpace(in.SQL)
	if text == "" {
		return "", "", types.ErrInvalidSQL
	}
	return name, text, nil
}

// writeReferences replaces the _query_tables rows of id with the tables
// text reads from.
func (qt *queriesTable) writeReferences(ctx context.Context, q querier, id, text string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM _query_tables WHERE query_id = ?", id); err != nil {
		return fmt.Errorf("clearing query references: %w", err)
	}
	for _, table := range qt.backend.extractor.Extract(text) {
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO _query_tables (query_id, table_name) VALUES (?, ?)", id, table,
		); err != nil {
			return fmt.Errorf("inserting query reference %s: %w", table, err)
		}
	}
	return nil
}

func getSavedQuery(ctx context.Context, q querier, id string) (*types.SavedQuery, error) {
	var sq types.SavedQuery
	var createdAt, updatedAt string
	err := q.QueryRowContext(ctx, selectQuery+" WHERE id = ?", id).
		Scan(&sq.ID, &sq.Name, &sq.SQL, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning query: %w", err)
	}
	if sq.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sq.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	sq.ReferencedTables, err = queryNames(ctx, q,
		"SELECT table_name FROM _query_tables WHERE query_id = ? ORDER BY table_name", id)
	if err != nil {
		return nil, fmt.Errorf("loading query references: %w", err)
	}
	for _, table := range sq.ReferencedTables {
		ok, err := tableExists(ctx, q, schemaMain, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			sq.Warnings = append(sq.Warnings, fmt.Sprintf("Table '%s' does not exist", table))
		}
	}
	return &sq, nil
}
