// This file implements the notebook store. Notebooks and legacy documents
// share _notebooks and _notebook_cells and differ only by kind.
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

// Compile-time interface check: notebooksTable must implement NotebookStore.
var _ types.NotebookStore = (*notebooksTable)(nil)

// notebooksTable persists notebooks and their cells. Cell lists are always
// written whole: replacing cells deletes every old row and inserts the new
// list with positions 0..n-1.
type notebooksTable struct {
	backend *Backend
}

const selectNotebook = `SELECT id, kind, name, markdown, created_at, updated_at FROM _notebooks`

const selectCells = `SELECT id, notebook_id, cell_index, cell_type, sql_text, markdown_text,
    chart_config, selected_tables, created_at
FROM _notebook_cells WHERE notebook_id = ? ORDER BY cell_index ASC`

// Create stores a new notebook and its cells with fresh ids.
func (nt *notebooksTable) Create(ctx context.Context, in types.NotebookInput) (*types.Notebook, error) {
	kind := in.Kind
	if kind == "" {
		kind = types.KindNotebook
	}
	if !types.ValidKind(kind) {
		return nil, types.ErrInvalidKind
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, types.ErrInvalidName
	}
	if err := validateCells(in.Cells); err != nil {
		return nil, err
	}

	db, release, err := nt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now().UTC()
	nb := &types.Notebook{
		ID:        newID(),
		Kind:      kind,
		Name:      name,
		Markdown:  in.Markdown,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertNotebook(ctx, tx, nb); err != nil {
		return nil, err
	}
	if err := insertCells(ctx, tx, nb.ID, in.Cells, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing notebook: %w", err)
	}

	return getNotebook(ctx, db, nb.ID)
}

// Get returns the notebook with its cells ordered by index.
func (nt *notebooksTable) Get(ctx context.Context, id string) (*types.Notebook, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := nt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return getNotebook(ctx, db, id)
}

// List returns notebooks of kind without their cells, most recently
// updated first. An empty kind lists all.
func (nt *notebooksTable) List(ctx context.Context, kind string) ([]*types.Notebook, error) {
	if kind != "" && !types.ValidKind(kind) {
		return nil, types.ErrInvalidKind
	}
	db, release, err := nt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	query := selectNotebook
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notebooks: %w", err)
	}
	defer rows.Close()

	var out []*types.Notebook
	for rows.Next() {
		nb, err := hydrateNotebook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

// Update applies in to the notebook and returns the stored result.
func (nt *notebooksTable) Update(ctx context.Context, id string, in types.NotebookUpdate) (*types.Notebook, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, types.ErrInvalidName
	}
	if err := validateCells(in.Cells); err != nil {
		return nil, err
	}

	db, release, err := nt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := hydrateNotebook(tx.QueryRowContext(ctx, selectNotebook+" WHERE id = ?", id))
	if err != nil {
		return nil, err
	}

	name, markdown := current.Name, current.Markdown
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if in.Markdown != nil {
		markdown = *in.Markdown
	}
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		"UPDATE _notebooks SET name = ?, markdown = ?, updated_at = ? WHERE id = ?",
		name, nullable(markdown), formatTime(now), id,
	); err != nil {
		return nil, fmt.Errorf("updating notebook: %w", err)
	}

	if in.Cells != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM _notebook_cells WHERE notebook_id = ?", id); err != nil {
			return nil, fmt.Errorf("deleting cells: %w", err)
		}
		if err := insertCells(ctx, tx, id, in.Cells, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing notebook: %w", err)
	}
	return getNotebook(ctx, db, id)
}

// Delete removes the notebook and cascades to its cells.
func (nt *notebooksTable) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	db, release, err := nt.backend.acquire()
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Cells first: they reference the notebook row.
	if _, err := tx.ExecContext(ctx, "DELETE FROM _notebook_cells WHERE notebook_id = ?", id); err != nil {
		return fmt.Errorf("deleting cells: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM _notebooks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting notebook: %w", err)
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

func validateCells(cells []types.CellInput) error {
	for i, c := range cells {
		if !types.ValidCellType(c.CellType) {
			return fmt.Errorf("cell %d: %w: %q", i, types.ErrInvalidCellType, c.CellType)
		}
	}
	return nil
}

// insertNotebook writes the notebook row. Cells are written separately.
func insertNotebook(ctx context.Context, q querier, nb *types.Notebook) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO _notebooks (id, kind, name, markdown, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		nb.ID, nb.Kind, nb.Name, nullable(nb.Markdown), formatTime(nb.CreatedAt), formatTime(nb.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notebook: %w", err)
	}
	return nil
}

// insertCells writes cells under notebookID with fresh ids. Positions are the
// slice indices, so the stored list is dense and zero-based.
func insertCells(ctx context.Context, q querier, notebookID string, cells []types.CellInput, now time.Time) error {
	for i, c := range cells {
		selected, err := encodeTables(c.SelectedTables)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO _notebook_cells
    (id, notebook_id, cell_index, cell_type, sql_text, markdown_text, chart_config, selected_tables, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newID(), notebookID, i, c.CellType,
			nullable(c.SQLText), nullable(c.MarkdownText), nullable(c.ChartConfig),
			selected, formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("inserting cell %d: %w", i, err)
		}
	}
	return nil
}

// getNotebook loads a notebook and its ordered cells through q.
func getNotebook(ctx context.Context, q querier, id string) (*types.Notebook, error) {
	nb, err := hydrateNotebook(q.QueryRowContext(ctx, selectNotebook+" WHERE id = ?", id))
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, selectCells, id)
	if err != nil {
		return nil, fmt.Errorf("loading cells for notebook %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := hydrateCell(rows)
		if err != nil {
			return nil, err
		}
		nb.Cells = append(nb.Cells, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nb, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func hydrateNotebook(row scanner) (*types.Notebook, error) {
	var nb types.Notebook
	var markdown sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&nb.ID, &nb.Kind, &nb.Name, &markdown, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning notebook: %w", err)
	}
	nb.Markdown = markdown.String
	if nb.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if nb.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &nb, nil
}

func hydrateCell(row scanner) (*types.Cell, error) {
	var c types.Cell
	var sqlText, markdownText, chartConfig, selected sql.NullString
	var createdAt string
	err := row.Scan(&c.ID, &c.NotebookID, &c.Index, &c.CellType,
		&sqlText, &markdownText, &chartConfig, &selected, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scanning cell: %w", err)
	}
	c.SQLText = sqlText.String
	c.MarkdownText = markdownText.String
	c.ChartConfig = chartConfig.String
	if c.SelectedTables, err = decodeTables(selected.String); err != nil {
		return nil, fmt.Errorf("cell %s: %w", c.ID, err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}
