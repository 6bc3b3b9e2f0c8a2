package types

import "time"

// Notebook kinds. A document is the legacy name for the same entity; both
// share storage and differ only in this tag.
const (
	KindNotebook = "notebook"
	KindDocument = "document"
)

// Cell types.
const (
	CellTypeSQL      = "sql"
	CellTypeMarkdown = "markdown"
)

var validKinds = map[string]bool{
	KindNotebook: true,
	KindDocument: true,
}

var validCellTypes = map[string]bool{
	CellTypeSQL:      true,
	CellTypeMarkdown: true,
}

// ValidKind reports whether kind is a recognized notebook kind.
func ValidKind(kind string) bool { return validKinds[kind] }

// ValidCellType reports whether t is a recognized cell type.
func ValidCellType(t string) bool { return validCellTypes[t] }

// Notebook is a named, ordered list of cells with optional top-level markdown.
type Notebook struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Markdown  string    `json:"markdown,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Cells     []Cell    `json:"cells,omitempty"`
}

// SQLCells returns the sql cells that carry text, in order.
func (n *Notebook) SQLCells() []Cell {
	var out []Cell
	for _, c := range n.Cells {
		if c.CellType == CellTypeSQL && c.SQLText != "" {
			out = append(out, c)
		}
	}
	return out
}

// Cell is one entry of a notebook. Index is zero-based and dense within
// its notebook.
type Cell struct {
	ID             string    `json:"id"`
	NotebookID     string    `json:"notebook_id"`
	Index          int       `json:"cell_index"`
	CellType       string    `json:"cell_type"`
	SQLText        string    `json:"sql_text,omitempty"`
	MarkdownText   string    `json:"markdown_text,omitempty"`
	ChartConfig    string    `json:"chart_config,omitempty"`
	SelectedTables []string  `json:"selected_tables,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CellInput describes a cell to write. Position comes from the slice index.
type CellInput struct {
	CellType       string   `json:"cell_type"`
	SQLText        string   `json:"sql_text,omitempty"`
	MarkdownText   string   `json:"markdown_text,omitempty"`
	ChartConfig    string   `json:"chart_config,omitempty"`
	SelectedTables []string `json:"selected_tables,omitempty"`
}

// NotebookInput describes a notebook to create. Kind defaults to
// KindNotebook.
type NotebookInput struct {
	Kind     string      `json:"kind,omitempty"`
	Name     string      `json:"name"`
	Markdown string      `json:"markdown,omitempty"`
	Cells    []CellInput `json:"cells,omitempty"`
}

// NotebookUpdate describes changes to an existing notebook. Nil pointers
// leave the field alone. A nil Cells slice keeps the current cells; any
// non-nil slice, including an empty one, replaces them wholesale.
type NotebookUpdate struct {
	Name     *string     `json:"name,omitempty"`
	Markdown *string     `json:"markdown,omitempty"`
	Cells    []CellInput `json:"cells"`
}
