package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

func sqlCell(text string, tables ...string) types.CellInput {
	return types.CellInput{CellType: types.CellTypeSQL, SQLText: text, SelectedTables: tables}
}

func markdownCell(text string) types.CellInput {
	return types.CellInput{CellType: types.CellTypeMarkdown, MarkdownText: text}
}

func TestNotebooksTable_CreateGet(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()

	nb, err := b.Notebooks().Create(ctx, types.NotebookInput{
		Name:     "  Sales  ",
		Markdown: "# intro",
		Cells: []types.CellInput{
			markdownCell("first"),
			sqlCell("SELECT * FROM orders", "orders"),
			{CellType: types.CellTypeSQL, SQLText: "SELECT 2", ChartConfig: `{"type":"bar"}`},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, nb.ID)
	assert.Equal(t, types.KindNotebook, nb.Kind)
	assert.Equal(t, "Sales", nb.Name)
	assert.Equal(t, "# intro", nb.Markdown)
	assert.False(t, nb.CreatedAt.IsZero())
	require.Len(t, nb.Cells, 3)

	for i, c := range nb.Cells {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, nb.ID, c.NotebookID)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, "first", nb.Cells[0].MarkdownText)
	assert.Equal(t, []string{"orders"}, nb.Cells[1].SelectedTables)
	assert.Nil(t, nb.Cells[2].SelectedTables)
	assert.Equal(t, `{"type":"bar"}`, nb.Cells[2].ChartConfig)

	got, err := b.Notebooks().Get(ctx, nb.ID)
	require.NoError(t, err)
	assert.Equal(t, nb, got)
}

func TestNotebooksTable_CreateInvalid(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   types.NotebookInput
		want error
	}{
		{"blank name", types.NotebookInput{Name: "   "}, types.ErrInvalidName},
		{"bad kind", types.NotebookInput{Name: "x", Kind: "sheet"}, types.ErrInvalidKind},
		{"bad cell type", types.NotebookInput{Name: "x", Cells: []types.CellInput{{CellType: "python"}}}, types.ErrInvalidCellType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Notebooks().Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNotebooksTable_GetErrors(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()

	_, err := b.Notebooks().Get(ctx, "")
	assert.ErrorIs(t, err, types.ErrInvalidID)
	_, err = b.Notebooks().Get(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestNotebooksTable_List(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()

	first, err := b.Notebooks().Create(ctx, types.NotebookInput{Name: "first", Cells: []types.CellInput{sqlCell("SELECT 1")}})
	require.NoError(t, err)
	second, err := b.Notebooks().Create(ctx, types.NotebookInput{Name: "second"})
	require.NoError(t, err)
	doc, err := b.Notebooks().Create(ctx, types.NotebookInput{Name: "doc", Kind: types.KindDocument})
	require.NoError(t, err)

	all, err := b.Notebooks().List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, doc.ID, all[0].ID, "most recently updated first")
	for _, nb := range all {
		assert.Empty(t, nb.Cells, "list omits cells")
	}

	notebooks, err := b.Notebooks().List(ctx, types.KindNotebook)
	require.NoError(t, err)
	require.Len(t, notebooks, 2)
	assert.Equal(t, second.ID, notebooks[0].ID)
	assert.Equal(t, first.ID, notebooks[1].ID)

	_, err = b.Notebooks().List(ctx, "sheet")
	assert.ErrorIs(t, err, types.ErrInvalidKind)
}

func TestNotebooksTable_UpdateReplacesCells(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()

	nb, err := b.Notebooks().Create(ctx, types.NotebookInput{
		Name:  "n",
		Cells: []types.CellInput{sqlCell("SELECT 1"), sqlCell("SELECT 2"), sqlCell("SELECT 3")},
	})
	require.NoError(t, err)
	oldIDs := map[string]bool{}
	for _, c := range nb.Cells {
		oldIDs[c.ID] = true
	}

	got, err := b.Notebooks().Update(ctx, nb.ID, types.NotebookUpdate{
		Cells: []types.CellInput{markdownCell("only"), sqlCell("SELECT 9")},
	})
	require.NoError(t, err)
	require.Len(t, got.Cells, 2)
	assert.Equal(t, "n", got.Name, "name untouched")
	for i, c := range got.Cells {
		assert.Equal(t, i, c.Index, "positions are dense")
		assert.False(t, oldIDs[c.ID], "cells are reinserted with new ids")
	}
	assert.False(t, got.UpdatedAt.Before(nb.UpdatedAt))
	assert.Equal(t, 2, countRows(t, b.DB(), types.TableNotebookCells))
}

func TestNotebooksTable_UpdateFields(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()

	nb, err := b.Notebooks().Create(ctx, types.NotebookInput{Name: "n", Cells: []types.CellInput{sqlCell("SELECT 1")}})
	require.NoError(t, err)

	name, md := "renamed", "notes"
	got, err := b.Notebooks().Update(ctx, nb.ID, types.NotebookUpdate{Name: &name, Markdown: &md})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, "notes", got.Markdown)
	require.Len(t, got.Cells, 1, "nil cells keeps the current list")
	assert.Equal(t, nb.Cells[0].ID, got.Cells[0].ID)

	got, err = b.Notebooks().Update(ctx, nb.ID, types.NotebookUpdate{Cells: []types.CellInput{}})
	require.NoError(t, err)
	assert.Empty(t, got.Cells, "empty cells clears the list")

	blank := " "
	_, err = b.Notebooks().Update(ctx, nb.ID, types.NotebookUpdate{Name: &blank})
	assert.ErrorIs(t, err, types.ErrInvalidName)
	_, err = b.Notebooks().Update(ctx, "missing", types.NotebookUpdate{Name: &name})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestNotebooksTable_Delete(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()

	keep, err := b.Notebooks().Create(ctx, types.NotebookInput{Name: "keep", Cells: []types.CellInput{sqlCell("SELECT 1")}})
	require.NoError(t, err)
	gone, err := b.Notebooks().Create(ctx, types.NotebookInput{Name: "gone", Cells: []types.CellInput{sqlCell("SELECT 1"), sqlCell("SELECT 2")}})
	require.NoError(t, err)

	require.NoError(t, b.Notebooks().Delete(ctx, gone.ID))
	_, err = b.Notebooks().Get(ctx, gone.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 1, countRows(t, b.DB(), types.TableNotebookCells), "cells cascade with their notebook")

	_, err = b.Notebooks().Get(ctx, keep.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, b.Notebooks().Delete(ctx, gone.ID), types.ErrNotFound)
	assert.ErrorIs(t, b.Notebooks().Delete(ctx, ""), types.ErrInvalidID)
}
