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

var _ types.FileStore = (*filesTable)(nil)

// filesTable records uploaded files. Rows are never updated or deleted.
type filesTable struct {
	backend *Backend
}

const selectFile = `SELECT id, filename, path, uploaded_at FROM _files`

// Register records a file stored at path under its original filename.
func (ft *filesTable) Register(ctx context.Context, filename, path string) (*types.StoredFile, error) {
	if strings.TrimSpace(filename) == "" || strings.TrimSpace(path) == "" {
		return nil, types.ErrInvalidName
	}
	db, release, err := ft.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	f := &types.StoredFile{
		ID:         newID(),
		Filename:   filename,
		Path:       path,
		UploadedAt: time.Now().UTC(),
	}
	if err := insertFile(ctx, db, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Get returns the file with id.
func (ft *filesTable) Get(ctx context.Context, id string) (*types.StoredFile, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := ft.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return hydrateFile(db.QueryRowContext(ctx, selectFile+" WHERE id = ?", id))
}

// List returns all files, newest first.
func (ft *filesTable) List(ctx context.Context) ([]*types.StoredFile, error) {
	db, release, err := ft.backend.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, selectFile+" ORDER BY uploaded_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var out []*types.StoredFile
	for rows.Next() {
		f, err := hydrateFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func insertFile(ctx context.Context, q querier, f *types.StoredFile) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO _files (id, filename, path, uploaded_at) VALUES (?, ?, ?, ?)",
		f.ID, f.Filename, f.Path, formatTime(f.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func hydrateFile(row scanner) (*types.StoredFile, error) {
	var f types.StoredFile
	var uploadedAt string
	err := row.Scan(&f.ID, &f.Filename, &f.Path, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning file: %w", err)
	}
	if f.UploadedAt, err = parseTime(uploadedAt); err != nil {
		return nil, err
	}
	return &f, nil
}
