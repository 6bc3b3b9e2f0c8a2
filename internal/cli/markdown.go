package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/quackbook/internal/markdown"
)

func (a *app) newMarkdownCmd() *cobra.Command {
	var (
		run bool
		out string
	)
	cmd := &cobra.Command{
		Use:   "markdown <notebook-id>",
		Short: "Render a notebook as markdown",
		Long: "Render a notebook as a markdown document. With --run every sql cell is\n" +
			"executed against its selected tables and the results are included.",
		Args: cobra.ExactArgs(1),
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

			var results map[string]markdown.Result
			if run {
				results = make(map[string]markdown.Result)
				for _, c := range nb.SQLCells() {
					data, err := s.Query(cmd.Context(), c.SQLText, c.SelectedTables, markdown.MaxTableRows)
					results[c.ID] = markdown.Result{Data: data, Err: err}
				}
			}

			doc := markdown.Render(nb, results)
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), doc)
				return nil
			}
			if err := os.WriteFile(out, []byte(doc+"\n"), 0o644); err != nil {
				return systemErr("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "execute sql cells and include results")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}
