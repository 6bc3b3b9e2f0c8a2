package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

func TestQuery_ShapesResult(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()
	mustExec(t, b,
		"CREATE TABLE people (id INTEGER, name TEXT, score REAL, note TEXT)",
		"INSERT INTO people VALUES (1, 'ada', 9.5, NULL), (2, 'bob', 7.25, NULL)",
	)

	res, err := b.Query(ctx, "SELECT * FROM people ORDER BY id;", []string{"People"}, 0)
	require.NoError(t, err)

	assert.Equal(t, []types.Column{
		{Name: "id", Type: "integer"},
		{Name: "name", Type: "string"},
		{Name: "score", Type: "number"},
		{Name: "note", Type: "null"},
	}, res.Columns)
	assert.Equal(t, [][]any{
		{int64(1), "ada", 9.5, nil},
		{int64(2), "bob", 7.25, nil},
	}, res.Rows)
	assert.Equal(t, 2, res.RowCount)
	assert.False(t, res.Truncated)
}

func TestQuery_Limit(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()
	seedOrders(t, b, 12)

	res, err := b.Query(ctx, "SELECT * FROM orders", []string{"orders"}, 5)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.Equal(t, 12, res.RowCount)
	assert.True(t, res.Truncated)

	res, err = b.Query(ctx, "SELECT * FROM orders", []string{"orders"}, 12)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 12)
	assert.False(t, res.Truncated)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, types.DefaultQueryLimit},
		{-3, types.DefaultQueryLimit},
		{50, 50},
		{types.MaxQueryLimit, types.MaxQueryLimit},
		{types.MaxQueryLimit + 1, types.MaxQueryLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.in), "limit %d", tt.in)
	}
}

func TestQuery_AccessChecks(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()
	seedOrders(t, b, 1)

	_, err := b.Query(ctx, "SELECT 1", nil, 0)
	assert.ErrorIs(t, err, types.ErrNoTablesSelected)

	_, err = b.Query(ctx, "SELECT * FROM orders JOIN secrets ON 1 = 1", []string{"orders"}, 0)
	require.ErrorIs(t, err, types.ErrAccessDenied)
	var accessErr *types.AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, []string{"secrets"}, accessErr.Tables)

	_, err = b.Query(ctx, "  ;  ", []string{"orders"}, 0)
	assert.ErrorIs(t, err, types.ErrInvalidSQL)
}

func TestQuery_DeniesEngineQuotingForms(t *testing.T) {
	b, _ := setupBackend(t)
	ctx := context.Background()
	seedOrders(t, b, 1)
	mustExec(t, b,
		"CREATE TABLE secret (pw TEXT)",
		"INSERT INTO secret VALUES ('pw')",
	)

	for _, query := range []string{
		"SELECT * FROM [secret]",
		"SELECT * FROM (secret)",
		"SELECT * FROM/**/secret",
		"SELECT * FROM orders JOIN [main].[secret] ON 1 = 1",
	} {
		t.Run(query, func(t *testing.T) {
			res, err := b.Query(ctx, query, []string{"orders"}, 0)
			assert.Nil(t, res)
			require.ErrorIs(t, err, types.ErrAccessDenied)
			var accessErr *types.AccessError
			require.ErrorAs(t, err, &accessErr)
			assert.Equal(t, []string{"secret"}, accessErr.Tables)
		})
	}

	res, err := b.Query(ctx, "SELECT * FROM [secret]", []string{"secret"}, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"pw"}}, res.Rows)
}

type fixedRefs []string

func (f fixedRefs) Extract(string) []string { return f }

func TestQuery_UsesConfiguredExtractor(t *testing.T) {
	b := NewBackend(WithExtractor(fixedRefs{"hidden"}))
	require.NoError(t, b.Open(types.Config{DataDir: t.TempDir()}))
	defer b.Close()

	_, err := b.Query(context.Background(), "SELECT 1", []string{"visible"}, 0)
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestQuery_EngineError(t *testing.T) {
	b, _ := setupBackend(t)
	_, err := b.Query(context.Background(), "SELECT * FROM nowhere", []string{"nowhere"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}
