package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// Metadata tables copied whole for each data mode, in copy order.
var exportMetadata = map[types.DataMode][]string{
	types.DataModeNone:             nil,
	types.DataModeQueryResults:     {types.TableFiles, types.TableTables},
	types.DataModeReferencedTables: {types.TableFiles, types.TableTables},
	types.DataModeFullDB:           {types.TableFiles, types.TableTables, types.TableQueries, types.TableQueryTables},
}

// archiveSidecars are the files the engine may leave next to a database.
var archiveSidecars = []string{"", "-journal", "-wal", "-shm"}

// Export writes the notebook and the data mode selects into a new archive
// under the export directory. Data tables that cannot be copied are skipped
// and reported in Warnings. Any other failure removes the archive.
func (b *Backend) Export(ctx context.Context, notebookID string, mode types.DataMode) (*types.ExportResult, error) {
	if notebookID == "" {
		return nil, types.ErrInvalidID
	}
	mode, err := types.ParseDataMode(string(mode))
	if err != nil {
		return nil, err
	}

	nb, err := b.notebooks.Get(ctx, notebookID)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(b.Config().GetExportDir(), newID()+types.ArchiveExt)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("export notebook %s: archive %s already exists", notebookID, path)
	}

	res := &types.ExportResult{Path: path, Notebook: nb, Mode: mode}
	log := b.log.WithFields(logrus.Fields{"notebook": nb.ID, "mode": mode, "path": path})

	err = b.withAttached(ctx, path, aliasExport, func(conn *sql.Conn) error {
		return b.fillArchive(ctx, conn, log, nb, res)
	})
	if err != nil {
		if rerr := removeArchive(path); rerr != nil {
			log.WithError(rerr).Error("removing partial archive")
			err = multierror.Append(err, rerr)
		}
		return nil, fmt.Errorf("export notebook %s: %w", notebookID, err)
	}

	log.WithField("tables", len(res.Tables)).WithField("warnings", len(res.Warnings)).Info("notebook exported")
	return res, nil
}

// fillArchive copies everything the archive holds through the attached
// connection. Only data-table copies are allowed to fail softly.
func (b *Backend) fillArchive(ctx context.Context, conn *sql.Conn, log *logrus.Entry, nb *types.Notebook, res *types.ExportResult) error {
	if err := copyTable(ctx, conn, aliasExport, types.TableNotebooks, schemaMain, types.TableNotebooks,
		"WHERE id = ?", nb.ID); err != nil {
		return err
	}
	if err := copyTable(ctx, conn, aliasExport, types.TableNotebookCells, schemaMain, types.TableNotebookCells,
		"WHERE notebook_id = ?", nb.ID); err != nil {
		return err
	}
	for _, meta := range exportMetadata[res.Mode] {
		if err := copyTable(ctx, conn, aliasExport, meta, schemaMain, meta, ""); err != nil {
			return err
		}
	}

	candidates, err := b.exportCandidates(ctx, conn, nb, res.Mode)
	if err != nil {
		return err
	}
	for _, name := range candidates {
		stored, err := resolveTable(ctx, conn, schemaMain, name)
		if err == nil && stored == "" {
			err = fmt.Errorf("no such table: %s", name)
		}
		if err == nil {
			err = copyTable(ctx, conn, aliasExport, stored, schemaMain, stored, "")
		}
		if err != nil {
			log.WithError(err).WithField("table", name).Warn("table not exported")
			res.Warnings = append(res.Warnings, fmt.Sprintf("table %s not exported: %v", name, err))
			continue
		}
		res.Tables = append(res.Tables, stored)
	}
	return nil
}

// exportCandidates returns the data tables mode asks for. Referenced names
// come from every SQL cell and are folded case-insensitively in first-seen
// order.
func (b *Backend) exportCandidates(ctx context.Context, conn *sql.Conn, nb *types.Notebook, mode types.DataMode) ([]string, error) {
	switch mode {
	case types.DataModeNone:
		return nil, nil
	case types.DataModeFullDB:
		return b.userTables(ctx, conn, schemaMain)
	}

	seen := make(map[string]bool)
	var out []string
	for _, c := range nb.SQLCells() {
		for _, name := range b.extractor.Extract(c.SQLText) {
			key := strings.ToLower(name)
			if seen[key] || types.IsSystemTable(name) {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// copyTable snapshots src into dst with CREATE TABLE AS SELECT. where may
// be empty; args bind its placeholders.
func copyTable(ctx context.Context, q querier, dstSchema, dst, srcSchema, src, where string, args ...any) error {
	stmt := fmt.Sprintf("CREATE TABLE %s.%s AS SELECT * FROM %s.%s",
		quoteIdent(dstSchema), quoteIdent(dst), quoteIdent(srcSchema), quoteIdent(src))
	if where != "" {
		stmt += " " + where
	}
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("copying %s.%s to %s: %w", srcSchema, src, dstSchema, err)
	}
	return nil
}

// removeArchive deletes path and any sidecar files. Missing files are not
// errors.
func removeArchive(path string) error {
	var result error
	for _, suffix := range archiveSidecars {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}
	return result
}
