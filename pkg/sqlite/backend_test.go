package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

func TestNewBackend_ExportImport(t *testing.T) {
	ctx := context.Background()

	src := NewBackend()
	require.NoError(t, src.Open(types.Config{DataDir: t.TempDir()}))
	defer src.Close()

	nb, err := src.Notebooks().Create(ctx, types.NotebookInput{
		Name:  "public api",
		Cells: []types.CellInput{{CellType: types.CellTypeSQL, SQLText: "SELECT 42"}},
	})
	require.NoError(t, err)

	exported, err := src.Export(ctx, nb.ID, types.DataModeNone)
	require.NoError(t, err)

	dst := NewBackend()
	require.NoError(t, dst.Open(types.Config{DataDir: t.TempDir()}))
	defer dst.Close()

	imported, err := dst.ImportFile(ctx, exported.Path)
	require.NoError(t, err)
	assert.Equal(t, "public api", imported.Notebook.Name)
	require.Len(t, imported.Notebook.Cells, 1)
	assert.Equal(t, "SELECT 42", imported.Notebook.Cells[0].SQLText)
}
