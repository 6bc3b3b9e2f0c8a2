package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

type env struct {
	configDir string
	dataDir   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	return env{
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "data"),
	}
}

// run executes the CLI with an isolated config and data dir and returns
// stdout.
func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "quackbook %s", strings.Join(args, " "))
	return out
}

// seedOrders initializes the workspace and materializes a two-row orders
// table.
func (e env) seedOrders(t *testing.T) {
	t.Helper()
	e.mustRun(t, "init")
	e.mustRun(t, "table", "save", "orders",
		"SELECT 1 AS id, 'north' AS region, 10 AS amount UNION ALL SELECT 2, 'south', 20")
}

func TestVersion(t *testing.T) {
	out := newEnv(t).mustRun(t, "version")
	assert.Contains(t, out, "quackbook v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInit_WritesConfigAndDatabase(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun(t, "init")
	assert.Contains(t, out, "Workspace initialized")

	data, err := os.ReadFile(filepath.Join(e.configDir, configFileExt))
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_dir: "+e.dataDir)
	assert.Contains(t, string(data), "database: "+types.DefaultDatabase)

	assert.FileExists(t, filepath.Join(e.dataDir, types.DefaultDatabase))
	assert.DirExists(t, filepath.Join(e.dataDir, types.DefaultExportDir))

	// Idempotent.
	e.mustRun(t, "init")
}

func TestNotebookLifecycle(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)

	out := e.mustRun(t, "--json", "notebook", "create",
		"--name", "Revenue", "--sql", "SELECT * FROM orders", "--allow", "orders")
	var nb types.Notebook
	require.NoError(t, json.Unmarshal([]byte(out), &nb))
	require.Len(t, nb.Cells, 1)
	assert.Equal(t, []string{"orders"}, nb.Cells[0].SelectedTables)

	out = e.mustRun(t, "notebook", "list")
	assert.Contains(t, out, nb.ID)
	assert.Contains(t, out, "Revenue")

	out = e.mustRun(t, "notebook", "show", nb.ID)
	assert.Contains(t, out, "SELECT * FROM orders")

	e.mustRun(t, "notebook", "delete", nb.ID)
	_, err := e.run(t, "notebook", "show", nb.ID)
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestNotebookCreate_FromFile(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "nb.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"kind": "document",
		"name": "From file",
		"cells": [
			{"cell_type": "markdown", "markdown_text": "intro"},
			{"cell_type": "sql", "sql_text": "SELECT 1", "selected_tables": ["t"]}
		]
	}`), 0o644))

	out := e.mustRun(t, "--json", "notebook", "create", "--from", path)
	var nb types.Notebook
	require.NoError(t, json.Unmarshal([]byte(out), &nb))
	assert.Equal(t, types.KindDocument, nb.Kind)
	require.Len(t, nb.Cells, 2)
	assert.Equal(t, types.CellTypeMarkdown, nb.Cells[0].CellType)

	out = e.mustRun(t, "notebook", "list", "--kind", types.KindNotebook)
	assert.Contains(t, out, "No notebooks")
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newEnv(t)
	src.seedOrders(t)

	out := src.mustRun(t, "--json", "notebook", "create",
		"--name", "Revenue", "--sql", "SELECT * FROM orders", "--allow", "orders")
	var nb types.Notebook
	require.NoError(t, json.Unmarshal([]byte(out), &nb))

	dest := filepath.Join(t.TempDir(), "revenue.quackdb")
	out = src.mustRun(t, "--json", "export", nb.ID, "--out", dest)
	var exported types.ExportResult
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	assert.Equal(t, dest, exported.Path)
	assert.Equal(t, []string{"orders"}, exported.Tables)
	assert.FileExists(t, dest)

	dst := newEnv(t)
	out = dst.mustRun(t, "--json", "import", dest)
	var imported types.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &imported))
	assert.NotEqual(t, nb.ID, imported.Notebook.ID)
	assert.Equal(t, []string{"orders"}, imported.Tables)

	out = dst.mustRun(t, "query", "SELECT region FROM orders ORDER BY id", "--allow", "orders")
	assert.Contains(t, out, "north")
	assert.Contains(t, out, "south")
	assert.FileExists(t, dest, "import never consumes the archive")
}

func TestExport_InvalidMode(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "export", "whatever", "--mode", "everything")
	require.ErrorIs(t, err, types.ErrInvalidDataMode)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestMarkdown_Run(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)
	out := e.mustRun(t, "--json", "notebook", "create",
		"--name", "Report", "--sql", "SELECT region FROM orders ORDER BY id", "--allow", "orders")
	var nb types.Notebook
	require.NoError(t, json.Unmarshal([]byte(out), &nb))

	out = e.mustRun(t, "markdown", nb.ID)
	assert.Contains(t, out, "# Report")
	assert.Contains(t, out, "*(No results yet)*")

	path := filepath.Join(t.TempDir(), "report.md")
	e.mustRun(t, "markdown", nb.ID, "--run", "--out", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| region |")
	assert.Contains(t, string(data), "| north |")
}

func TestQuery_AccessDenied(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)

	_, err := e.run(t, "query", "SELECT * FROM orders")
	assert.ErrorIs(t, err, types.ErrNoTablesSelected)

	_, err = e.run(t, "query", "SELECT * FROM orders JOIN secrets ON 1 = 1", "--allow", "orders")
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	out := e.mustRun(t, "query", "SELECT * FROM orders", "--allow", "orders", "--limit", "1")
	assert.Contains(t, out, "(showing 1 of 2 rows)")
}

func TestRefsAndValidate(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun(t, "refs", "SELECT * FROM orders o JOIN customers c ON o.cid = c.id")
	assert.Equal(t, "orders\ncustomers\n", out)

	out = e.mustRun(t, "validate", "SELECT * FROM orders", "--allow", "Orders")
	assert.Equal(t, "OK\n", out)

	out, err := e.run(t, "--json", "validate", "SELECT * FROM orders JOIN secrets ON 1 = 1", "--allow", "orders")
	require.ErrorIs(t, err, types.ErrAccessDenied)
	var report validation
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"secrets"}, report.Unauthorized)
}

func TestTableLoadInspectDrop(t *testing.T) {
	e := newEnv(t)
	e.mustRun(t, "init")
	dir := t.TempDir()
	first := filepath.Join(dir, "sales.csv")
	second := filepath.Join(dir, "more.csv")
	require.NoError(t, os.WriteFile(first, []byte("id,region,amount\n1,north,2.5\n2,south,4\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("id,region,amount\n3,east,1\n"), 0o644))

	out := e.mustRun(t, "table", "load", first)
	assert.Contains(t, out, "Created table sales from sales.csv")

	out = e.mustRun(t, "table", "load", second, "--name", "sales", "--mode", "append")
	assert.Contains(t, out, "Appended to table sales")

	out = e.mustRun(t, "--json", "table", "schema", "sales")
	var cols []types.Column
	require.NoError(t, json.Unmarshal([]byte(out), &cols))
	assert.Equal(t, []types.Column{
		{Name: "id", Type: "integer"},
		{Name: "region", Type: "text"},
		{Name: "amount", Type: "real"},
	}, cols)

	out = e.mustRun(t, "table", "preview", "sales", "--limit", "2")
	assert.Contains(t, out, "north")
	assert.NotContains(t, out, "east")
	assert.Contains(t, out, "(showing 2 of 3 rows)")

	out = e.mustRun(t, "table", "list")
	assert.Contains(t, out, "sales")

	e.mustRun(t, "table", "drop", "sales")
	_, err := e.run(t, "table", "schema", "sales")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestTableLoad_Errors(t *testing.T) {
	e := newEnv(t)
	e.seedOrders(t)
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\n1\n"), 0o644))

	_, err := e.run(t, "table", "load", path)
	require.ErrorIs(t, err, types.ErrTableExists)
	assert.Equal(t, exitUserError, exitCode(err))

	_, err = e.run(t, "table", "load", path, "--mode", "append")
	require.ErrorIs(t, err, types.ErrInvalidFile, "column count differs")

	_, err = e.run(t, "table", "load", path, "--mode", "replace")
	require.ErrorIs(t, err, types.ErrInvalidLoadMode)

	_, err = e.run(t, "table", "load", filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, types.ErrInvalidFile)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"not found", fmt.Errorf("get: %w", types.ErrNotFound), exitUserError},
		{"access", &types.AccessError{Tables: []string{"x"}}, exitUserError},
		{"config", fmt.Errorf("%w: bad", errConfig), exitUserError},
		{"system", systemErr("open: %w", errors.New("disk")), exitSysError},
		{"unclassified", errors.New("unknown flag"), exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestResolveSettings_InvalidLogLevel(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "--log-level", "loud", "init")
	require.ErrorIs(t, err, errConfig)
	assert.Equal(t, exitUserError, exitCode(err))
}
