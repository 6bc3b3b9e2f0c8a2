// Tests for the SQLite backend lifecycle and shared helpers.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// setupBackend opens a Backend in a fresh temp dir. Logs go to the returned
// hook so tests can assert on warnings.
func setupBackend(t *testing.T) (*Backend, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	b := NewBackend(WithLogger(logrus.NewEntry(logger)))
	require.NoError(t, b.Open(types.Config{DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Close() })
	return b, hook
}

// mustExec runs statements against the live database.
func mustExec(t *testing.T, b *Backend, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		_, err := b.DB().Exec(s)
		require.NoError(t, err, s)
	}
}

// countRows returns the row count of table through db.
func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n))
	return n
}

func TestBackend_Open(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	config := types.Config{DataDir: dir}

	require.NoError(t, b.Open(config))
	defer b.Close()

	_, err := os.Stat(filepath.Join(dir, types.DefaultDatabase))
	assert.NoError(t, err, "database file should exist")
	_, err = os.Stat(filepath.Join(dir, types.DefaultExportDir))
	assert.NoError(t, err, "export dir should exist")

	assert.ErrorIs(t, b.Open(config), types.ErrAlreadyOpen)

	for _, table := range types.SystemTableNames {
		var name string
		err := b.DB().QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "metadata table %s should exist", table)
	}
}

func TestBackend_OpenInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config types.Config
		want   error
	}{
		{"empty data dir", types.Config{}, types.ErrDataDirEmpty},
		{"database with archive suffix", types.Config{DataDir: t.TempDir(), Database: "x" + types.ArchiveExt}, types.ErrArchiveExtReused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend()
			assert.ErrorIs(t, b.Open(tt.config), tt.want)
		})
	}
}

func TestBackend_Close(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Open(types.Config{DataDir: t.TempDir()}))

	require.NoError(t, b.Close())
	assert.NoError(t, b.Close(), "second Close should not error")
	assert.Nil(t, b.DB())

	ctx := context.Background()
	_, err := b.Notebooks().Get(ctx, "x")
	assert.ErrorIs(t, err, types.ErrBackendClosed)
	_, err = b.Query(ctx, "SELECT 1", []string{"t"}, 0)
	assert.ErrorIs(t, err, types.ErrBackendClosed)
	_, err = b.Export(ctx, "x", types.DataModeNone)
	assert.ErrorIs(t, err, types.ErrBackendClosed)
}

func TestBackend_DataPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b := NewBackend()
	require.NoError(t, b.Open(types.Config{DataDir: dir}))
	nb, err := b.Notebooks().Create(ctx, types.NotebookInput{
		Name:  "Persisted",
		Cells: []types.CellInput{{CellType: types.CellTypeSQL, SQLText: "SELECT 1"}},
	})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b2 := NewBackend()
	require.NoError(t, b2.Open(types.Config{DataDir: dir}))
	defer b2.Close()

	got, err := b2.Notebooks().Get(ctx, nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Name)
	require.Len(t, got.Cells, 1)
	assert.Equal(t, "SELECT 1", got.Cells[0].SQLText)
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 3, 120, time.UTC)
	got, err := parseTime(formatTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))

	got, err = parseTime("2024-03-09 07:05:03")
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"orders"`, quoteIdent("orders"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
