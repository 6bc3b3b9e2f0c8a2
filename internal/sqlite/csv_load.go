package sqlite

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// csvData is a parsed CSV file: a header and the records under it.
type csvData struct {
	columns []string
	records [][]string
}

// readCSV parses the file at path. Every record must have as many fields
// as the header.
func readCSV(path string) (*csvData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s has no header", types.ErrInvalidFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidFile, path, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	data := &csvData{columns: columnNames(header)}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidFile, path, err)
		}
		data.records = append(data.records, rec)
	}
	return data, nil
}

// columnNames cleans header fields into usable column names. Blank fields
// become column<N>; repeats, compared case-insensitively, get a _<K> suffix.
func columnNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column" + strconv.Itoa(i+1)
		}
		base := name
		for k := 2; seen[strings.ToLower(name)]; k++ {
			name = base + "_" + strconv.Itoa(k)
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

// columnType picks INTEGER, REAL or TEXT for column i from its non-empty
// values. A column with no values is TEXT.
func (d *csvData) columnType(i int) string {
	typ := ""
	for _, rec := range d.records {
		v := strings.TrimSpace(rec[i])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			if typ == "" {
				typ = "INTEGER"
			}
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			typ = "REAL"
			continue
		}
		return "TEXT"
	}
	if typ == "" {
		return "TEXT"
	}
	return typ
}

func (d *csvData) createStatement(table string) string {
	defs := make([]string, len(d.columns))
	for i, c := range d.columns {
		defs[i] = quoteIdent(c) + " " + d.columnType(i)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

// insertRecords appends every record positionally. Empty fields are NULL;
// column affinity converts the rest.
func (d *csvData) insertRecords(ctx context.Context, q querier, table string) error {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(d.columns)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), marks)
	args := make([]any, len(d.columns))
	for n, rec := range d.records {
		for i, v := range rec {
			args[i] = nullable(v)
		}
		if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("inserting record %d into %s: %w", n+1, table, err)
		}
	}
	return nil
}

// CreateFromFile loads the registered CSV file fileID into table name.
func (tt *tablesTable) CreateFromFile(ctx context.Context, name, fileID string, mode types.LoadMode) (*types.UserTable, error) {
	if !ValidTableName(name) {
		return nil, types.ErrInvalidTableName
	}
	if mode == "" {
		mode = types.LoadModeCreate
	}
	if mode != types.LoadModeCreate && mode != types.LoadModeAppend {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidLoadMode, mode)
	}
	if fileID == "" {
		return nil, types.ErrNotFound
	}

	db, release, err := tt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	file, err := hydrateFile(db.QueryRowContext(ctx, selectFile+" WHERE id = ?", fileID))
	if err != nil {
		return nil, err
	}
	data, err := readCSV(file.Path)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := resolveTable(ctx, tx, schemaMain, name)
	if err != nil {
		return nil, err
	}

	var ut *types.UserTable
	switch mode {
	case types.LoadModeCreate:
		if stored != "" {
			return nil, fmt.Errorf("%w: %s", types.ErrTableExists, name)
		}
		if _, err := tx.ExecContext(ctx, data.createStatement(name)); err != nil {
			return nil, fmt.Errorf("creating table %s: %w", name, err)
		}
		if err := data.insertRecords(ctx, tx, name); err != nil {
			return nil, err
		}
		ut = &types.UserTable{ID: newID(), Name: name, SourceFileID: file.ID, CreatedAt: time.Now().UTC()}
		if err := insertUserTable(ctx, tx, ut); err != nil {
			return nil, err
		}
	case types.LoadModeAppend:
		if stored == "" {
			return nil, fmt.Errorf("%w: table %s", types.ErrNotFound, name)
		}
		cols, err := tableColumns(ctx, tx, stored)
		if err != nil {
			return nil, err
		}
		if len(cols) != len(data.columns) {
			return nil, fmt.Errorf("%w: %s has %d columns, table %s has %d",
				types.ErrInvalidFile, file.Filename, len(data.columns), stored, len(cols))
		}
		if err := data.insertRecords(ctx, tx, stored); err != nil {
			return nil, err
		}
		ut, err = getUserTable(ctx, tx, stored)
		if errors.Is(err, types.ErrNotFound) {
			ut, err = &types.UserTable{Name: stored}, nil
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing load into %s: %w", name, err)
	}
	tt.backend.log.WithField("table", ut.Name).WithField("file", file.Filename).
		WithField("mode", string(mode)).WithField("rows", len(data.records)).Info("loaded file")
	return ut, nil
}

// Schema returns the declared columns of table name.
func (tt *tablesTable) Schema(ctx context.Context, name string) ([]types.Column, error) {
	if !ValidTableName(name) {
		return nil, types.ErrInvalidTableName
	}
	db, release, err := tt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	stored, err := resolveTable(ctx, db, schemaMain, name)
	if err != nil {
		return nil, err
	}
	if stored == "" {
		return nil, types.ErrNotFound
	}
	return tableColumns(ctx, db, stored)
}

// Preview returns the first rows of table name.
func (tt *tablesTable) Preview(ctx context.Context, name string, limit int) (*types.QueryResult, error) {
	if !ValidTableName(name) {
		return nil, types.ErrInvalidTableName
	}
	switch {
	case limit <= 0:
		limit = types.DefaultPreviewLimit
	case limit > types.MaxPreviewLimit:
		limit = types.MaxPreviewLimit
	}

	db, release, err := tt.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	stored, err := resolveTable(ctx, db, schemaMain, name)
	if err != nil {
		return nil, err
	}
	if stored == "" {
		return nil, types.ErrNotFound
	}
	return shapeQuery(ctx, db, "SELECT * FROM "+quoteIdent(stored), limit)
}

// tableColumns lists the columns of a main-schema table in declaration
// order. An undeclared type reads as "any".
func tableColumns(ctx context.Context, q querier, table string) ([]types.Column, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []types.Column
	for rows.Next() {
		var c types.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		c.Type = strings.ToLower(c.Type)
		if c.Type == "" {
			c.Type = "any"
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
