// Package markdown renders notebooks as standalone markdown documents.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// MaxTableRows caps the rows rendered per result table.
const MaxTableRows = 50

// Result is the outcome of running one SQL cell. Exactly one field is set.
type Result struct {
	Data *types.QueryResult
	Err  error
}

var newline = regexp.MustCompile(`\r?\n`)

// Render returns nb as markdown. results is keyed by cell id; SQL cells
// without an entry render as not yet run.
func Render(nb *types.Notebook, results map[string]Result) string {
	var sections []string

	if name := strings.TrimSpace(nb.Name); name != "" {
		sections = append(sections, "# "+name+"\n")
	}
	if md := strings.TrimSpace(nb.Markdown); md != "" {
		sections = append(sections, md)
	}

	for i, c := range nb.Cells {
		if c.CellType == types.CellTypeMarkdown {
			if c.MarkdownText == "" {
				sections = append(sections, fmt.Sprintf("<!-- markdown cell %d -->", i+1))
			} else {
				sections = append(sections, c.MarkdownText)
			}
			continue
		}

		sections = append(sections, "```sql\n"+c.SQLText+"\n```\n")

		r, ok := results[c.ID]
		switch {
		case !ok:
			sections = append(sections, "*(No results yet)*")
		case r.Err != nil:
			sections = append(sections, "\n```text\n"+r.Err.Error()+"\n```\n")
		case r.Data != nil:
			sections = append(sections, Table(r.Data.Columns, r.Data.Rows))
			if r.Data.Truncated {
				sections = append(sections,
					fmt.Sprintf("\n*(Showing %d of %d rows)*\n", len(r.Data.Rows), r.Data.RowCount))
			}
		default:
			sections = append(sections, "*(No results yet)*")
		}
	}

	return strings.Join(sections, "\n\n")
}

// Table renders rows as a markdown table of at most MaxTableRows rows.
func Table(columns []types.Column, rows [][]any) string {
	if len(columns) == 0 {
		return "*(no columns)*"
	}

	names := make([]string, len(columns))
	dividers := make([]string, len(columns))
	for i, c := range columns {
		names[i] = escape(c.Name)
		dividers[i] = "---"
	}
	lines := []string{
		"| " + strings.Join(names, " | ") + " |",
		"| " + strings.Join(dividers, " | ") + " |",
	}

	for i, row := range rows {
		if i == MaxTableRows {
			marker := make([]string, len(columns))
			marker[0] = "… (truncated)"
			lines = append(lines, "| "+strings.Join(marker, " | ")+" |")
			break
		}
		cells := make([]string, len(columns))
		for j := range columns {
			if j < len(row) {
				cells[j] = escape(row[j])
			}
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

// escape formats v for a table cell. Newlines become a literal \n and
// pipes are escaped.
func escape(v any) string {
	if v == nil {
		return ""
	}
	s := newline.ReplaceAllString(fmt.Sprint(v), `\n`)
	return strings.ReplaceAll(s, "|", `\|`)
}
