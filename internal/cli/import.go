package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive>",
		Short: "Import a notebook archive",
		Long: "Merge a .quackdb archive into the workspace. The notebook and its cells\n" +
			"get new ids. Data tables whose names already exist are left untouched.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), res)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Imported %s %q as %s (%d cells)\n", res.Notebook.Kind, res.Notebook.Name, res.Notebook.ID, len(res.Notebook.Cells))
			fmt.Fprintf(w, "  tables:  %s\n", joinOrDash(res.Tables))
			if len(res.Skipped) > 0 {
				fmt.Fprintf(w, "  skipped: %s\n", joinOrDash(res.Skipped))
			}
			printWarnings(w, res.Warnings)
			return nil
		},
	}
}
