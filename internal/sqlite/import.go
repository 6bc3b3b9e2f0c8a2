package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// archiveLayout names the notebook tables of one archive generation.
type archiveLayout struct {
	notebooks string
	cells     string
	parent    string
	kind      string
}

// Layouts tried in order. Older archives store documents in their own pair
// of tables.
var archiveLayouts = []archiveLayout{
	{notebooks: types.TableNotebooks, cells: types.TableNotebookCells, parent: "notebook_id", kind: types.KindNotebook},
	{notebooks: types.TableDocuments, cells: types.TableDocumentCells, parent: "document_id", kind: types.KindDocument},
}

// reloadNotebook reads the imported notebook back. Tests replace it.
var reloadNotebook = getNotebook

// ImportFile merges the archive at path. The file itself is never attached;
// a private copy is.
func (b *Backend) ImportFile(ctx context.Context, path string) (*types.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()
	return b.Import(ctx, f)
}

// Import copies r to a temporary archive, merges its notebook under new ids
// and copies each data table the live database does not already have. The
// temporary file is removed on every exit path.
func (b *Backend) Import(ctx context.Context, r io.Reader) (*types.ImportResult, error) {
	tmp, err := writeTemp(b.Config().GetExportDir(), r)
	if err != nil {
		return nil, fmt.Errorf("import archive: %w", err)
	}
	log := b.log.WithField("archive", tmp)
	defer func() {
		if rerr := removeArchive(tmp); rerr != nil {
			log.WithError(rerr).Error("removing temporary archive")
		}
	}()

	res := &types.ImportResult{}
	err = b.withAttached(ctx, tmp, aliasImport, func(conn *sql.Conn) error {
		id, err := importNotebook(ctx, conn)
		if err != nil {
			return err
		}
		b.mergeTables(ctx, conn, log, res)

		// The notebook is committed by now; a failed reload still reports
		// its id.
		nb, err := reloadNotebook(ctx, conn, id)
		if err != nil {
			log.WithError(err).WithField("notebook", id).Warn("imported notebook not reloaded")
			res.Warnings = append(res.Warnings, fmt.Sprintf("notebook %s imported but not reloaded: %v", id, err))
			nb = &types.Notebook{ID: id}
		}
		res.Notebook = nb
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import archive: %w", err)
	}

	log.WithFields(logrus.Fields{
		"notebook": res.Notebook.ID,
		"tables":   len(res.Tables),
		"skipped":  len(res.Skipped),
	}).Info("archive imported")
	return res, nil
}

// importNotebook inserts the archive's notebook and cells under new ids in
// one transaction and returns the new notebook id.
func importNotebook(ctx context.Context, conn *sql.Conn) (string, error) {
	layout, err := detectLayout(ctx, conn)
	if err != nil {
		return "", err
	}

	_, rows, err := queryRecords(ctx, conn, fmt.Sprintf("SELECT * FROM %s.%s LIMIT 1",
		quoteIdent(aliasImport), quoteIdent(layout.notebooks)))
	if err != nil {
		return "", fmt.Errorf("reading archive notebook: %w", err)
	}
	if len(rows) == 0 {
		return "", types.ErrNoNotebook
	}
	src := rows[0]

	cells, err := readArchiveCells(ctx, conn, layout, src.String("id"))
	if err != nil {
		return "", err
	}

	kind := src.String("kind")
	if !types.ValidKind(kind) {
		kind = layout.kind
	}
	name := strings.TrimSpace(src.String("name"))
	if name == "" {
		name = "Imported " + kind
	}
	now := time.Now().UTC()
	nb := &types.Notebook{
		ID:        newID(),
		Kind:      kind,
		Name:      name,
		Markdown:  src.String("markdown"),
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertNotebook(ctx, tx, nb); err != nil {
		return "", err
	}
	if err := insertCells(ctx, tx, nb.ID, cells, now); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing imported notebook: %w", err)
	}
	return nb.ID, nil
}

// detectLayout returns the first layout whose notebook table the archive
// has.
func detectLayout(ctx context.Context, conn *sql.Conn) (archiveLayout, error) {
	for _, l := range archiveLayouts {
		ok, err := tableExists(ctx, conn, aliasImport, l.notebooks)
		if err != nil {
			return archiveLayout{}, fmt.Errorf("reading archive catalog: %w", err)
		}
		if ok {
			return l, nil
		}
	}
	return archiveLayout{}, types.ErrNoNotebook
}

// readArchiveCells reads the cells of parentID in position order. An archive
// without a cell table has no cells.
func readArchiveCells(ctx context.Context, conn *sql.Conn, layout archiveLayout, parentID string) ([]types.CellInput, error) {
	ok, err := tableExists(ctx, conn, aliasImport, layout.cells)
	if err != nil {
		return nil, fmt.Errorf("reading archive catalog: %w", err)
	}
	if !ok {
		return nil, nil
	}

	_, rows, err := queryRecords(ctx, conn,
		fmt.Sprintf("SELECT * FROM %s.%s WHERE %s = ? ORDER BY cell_index ASC",
			quoteIdent(aliasImport), quoteIdent(layout.cells), quoteIdent(layout.parent)),
		parentID)
	if err != nil {
		return nil, fmt.Errorf("reading archive cells: %w", err)
	}

	cells := make([]types.CellInput, 0, len(rows))
	for i, row := range rows {
		c := types.CellInput{
			CellType:     row.String("cell_type"),
			SQLText:      row.String("sql_text"),
			MarkdownText: row.String("markdown_text"),
			ChartConfig:  row.String("chart_config"),
		}
		if !types.ValidCellType(c.CellType) {
			return nil, fmt.Errorf("archive cell %d: %w: %q", i, types.ErrInvalidCellType, c.CellType)
		}
		if c.SelectedTables, err = decodeTables(row.String("selected_tables")); err != nil {
			return nil, fmt.Errorf("archive cell %d: %w", i, err)
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// mergeTables copies archive data tables absent from the live database.
// Existing tables win. Every failure here is a warning.
func (b *Backend) mergeTables(ctx context.Context, conn *sql.Conn, log *logrus.Entry, res *types.ImportResult) {
	warn := func(table string, err error) {
		log.WithError(err).WithField("table", table).Warn("table not imported")
		res.Warnings = append(res.Warnings, fmt.Sprintf("table %s not imported: %v", table, err))
	}

	names, err := b.userTables(ctx, conn, aliasImport)
	if err != nil {
		warn("*", err)
		return
	}

	for _, name := range names {
		exists, err := tableExists(ctx, conn, schemaMain, name)
		if err != nil {
			warn(name, err)
			continue
		}
		if exists {
			log.WithField("table", name).Debug("table exists, skipped")
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if err := copyTable(ctx, conn, schemaMain, name, aliasImport, name, ""); err != nil {
			warn(name, err)
			continue
		}
		res.Tables = append(res.Tables, name)

		if err := mergeProvenance(ctx, conn, name); err != nil {
			log.WithError(err).WithField("table", name).Warn("table provenance not imported")
			res.Warnings = append(res.Warnings, fmt.Sprintf("provenance for %s not imported: %v", name, err))
		}
	}
}

// mergeProvenance registers the archive's _tables row for name, and its
// source file when the archive carries it, under new ids.
func mergeProvenance(ctx context.Context, conn *sql.Conn, name string) error {
	ok, err := tableExists(ctx, conn, aliasImport, types.TableTables)
	if err != nil || !ok {
		return err
	}
	_, rows, err := queryRecords(ctx, conn,
		fmt.Sprintf("SELECT * FROM %s.%s WHERE name = ? COLLATE NOCASE LIMIT 1",
			quoteIdent(aliasImport), quoteIdent(types.TableTables)), name)
	if err != nil || len(rows) == 0 {
		return err
	}
	if _, err := getUserTable(ctx, conn, name); err == nil {
		return nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ut := &types.UserTable{ID: newID(), Name: name, CreatedAt: now}
	if sourceID := rows[0].String("source_file_id"); sourceID != "" {
		f, err := archiveFile(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		if f != nil {
			f.ID = newID()
			f.UploadedAt = now
			if err := insertFile(ctx, tx, f); err != nil {
				return err
			}
			ut.SourceFileID = f.ID
		}
	}
	if err := insertUserTable(ctx, tx, ut); err != nil {
		return err
	}
	return tx.Commit()
}

// archiveFile returns the archive's _files row for id, or nil.
func archiveFile(ctx context.Context, q querier, id string) (*types.StoredFile, error) {
	ok, err := tableExists(ctx, q, aliasImport, types.TableFiles)
	if err != nil || !ok {
		return nil, err
	}
	_, rows, err := queryRecords(ctx, q,
		fmt.Sprintf("SELECT * FROM %s.%s WHERE id = ? LIMIT 1", quoteIdent(aliasImport), quoteIdent(types.TableFiles)), id)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	f := &types.StoredFile{Filename: rows[0].String("filename"), Path: rows[0].String("path")}
	if f.Filename == "" || f.Path == "" {
		return nil, nil
	}
	return f, nil
}

// writeTemp copies r to a new file under dir and syncs it.
func writeTemp(dir string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}
	path := filepath.Join(dir, "import-"+newID()+types.ArchiveExt)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return path, nil
}
