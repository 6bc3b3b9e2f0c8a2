package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

func (a *app) newNotebookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notebook",
		Aliases: []string{"nb"},
		Short:   "Manage notebooks and documents",
	}
	cmd.AddCommand(a.newNotebookCreateCmd())
	cmd.AddCommand(a.newNotebookListCmd())
	cmd.AddCommand(a.newNotebookShowCmd())
	cmd.AddCommand(a.newNotebookDeleteCmd())
	return cmd
}

type notebookCreateFlags struct {
	name     string
	markdown string
	kind     string
	sql      []string
	allow    []string
	from     string
}

func (a *app) newNotebookCreateCmd() *cobra.Command {
	var f notebookCreateFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a notebook",
		Long: "Create a notebook from flags or from a JSON file. Each --sql adds one sql\n" +
			"cell in order; --allow sets the tables those cells may read.",
		Example: `  quackbook notebook create --name "Revenue" --sql "SELECT * FROM orders" --allow orders
  quackbook notebook create --from notebook.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}

			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			nb, err := s.Notebooks().Create(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("create notebook: %w", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), nb)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%d cells)\n", nb.Kind, nb.ID, len(nb.Cells))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "", "notebook name")
	cmd.Flags().StringVar(&f.markdown, "markdown", "", "top-level markdown")
	cmd.Flags().StringVar(&f.kind, "kind", "", "notebook or document (default notebook)")
	cmd.Flags().StringArrayVar(&f.sql, "sql", nil, "add a sql cell (repeatable)")
	cmd.Flags().StringSliceVar(&f.allow, "allow", nil, "tables the sql cells may read")
	cmd.Flags().StringVar(&f.from, "from", "", "read the notebook from a JSON file")
	return cmd
}

// input builds the NotebookInput. Flags override fields read from --from.
func (f *notebookCreateFlags) input() (types.NotebookInput, error) {
	var in types.NotebookInput
	if f.from != "" {
		data, err := os.ReadFile(f.from)
		if err != nil {
			return in, systemErr("read %s: %w", f.from, err)
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("%w: parse %s: %v", errConfig, f.from, err)
		}
	}
	if f.name != "" {
		in.Name = f.name
	}
	if f.markdown != "" {
		in.Markdown = f.markdown
	}
	if f.kind != "" {
		in.Kind = f.kind
	}
	for _, sql := range f.sql {
		in.Cells = append(in.Cells, types.CellInput{
			CellType:       types.CellTypeSQL,
			SQLText:        sql,
			SelectedTables: f.allow,
		})
	}
	return in, nil
}

func (a *app) newNotebookListCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notebooks, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.Notebooks().List(cmd.Context(), kind)
			if err != nil {
				return fmt.Errorf("list notebooks: %w", err)
			}
			if a.flags.jsonMode {
				if list == nil {
					list = []*types.Notebook{}
				}
				return printJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notebooks")
				return nil
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tKIND\tNAME\tUPDATED")
			for _, nb := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", nb.ID, nb.Kind, nb.Name, nb.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only list this kind")
	return cmd
}

func (a *app) newNotebookShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a notebook and its cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			nb, err := s.Notebooks().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get notebook: %w", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), nb)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s (%s)\n", nb.ID, nb.Name, nb.Kind)
			for _, c := range nb.Cells {
				switch c.CellType {
				case types.CellTypeSQL:
					fmt.Fprintf(out, "[%d] sql   %s   tables: %s\n", c.Index, c.SQLText, joinOrDash(c.SelectedTables))
				default:
					fmt.Fprintf(out, "[%d] %s %s\n", c.Index, c.CellType, c.MarkdownText)
				}
			}
			return nil
		},
	}
}

func (a *app) newNotebookDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notebook and its cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Notebooks().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete notebook: %w", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
