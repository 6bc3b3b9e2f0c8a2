package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

func (a *app) newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Load, inspect and drop data tables",
	}
	cmd.AddCommand(a.newTableListCmd())
	cmd.AddCommand(a.newTableLoadCmd())
	cmd.AddCommand(a.newTableSaveCmd())
	cmd.AddCommand(a.newTableSchemaCmd())
	cmd.AddCommand(a.newTablePreviewCmd())
	cmd.AddCommand(a.newTableDropCmd())
	return cmd
}

func (a *app) newTableListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked data tables, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.Tables().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tables: %w", err)
			}
			if a.flags.jsonMode {
				if list == nil {
					list = []*types.UserTable{}
				}
				return printJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tables")
				return nil
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "NAME\tSOURCE\tCREATED")
			for _, ut := range list {
				source := ut.SourceFileID
				if source == "" {
					source = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", ut.Name, source, ut.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func (a *app) newTableLoadCmd() *cobra.Command {
	var name, mode string
	cmd := &cobra.Command{
		Use:   "load <file.csv>",
		Short: "Load a CSV file into a table",
		Long: "Register a CSV file and load it. The first record is the header. With\n" +
			"--mode create (the default) a new table is made, named by --name or the\n" +
			"file's base name; --mode append adds rows to an existing table whose\n" +
			"column count matches.",
		Example: `  quackbook table load ./orders.csv
  quackbook table load ./more_orders.csv --name orders --mode append`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lm, err := types.ParseLoadMode(mode)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return systemErr("resolve %s: %w", args[0], err)
			}
			if st, err := os.Stat(path); err != nil || st.IsDir() {
				return fmt.Errorf("%w: %s is not a readable file", types.ErrInvalidFile, args[0])
			}
			base := filepath.Base(path)
			if name == "" {
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}

			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := s.Files().Register(cmd.Context(), base, path)
			if err != nil {
				return fmt.Errorf("register file: %w", err)
			}
			ut, err := s.Tables().CreateFromFile(cmd.Context(), name, f.ID, lm)
			if err != nil {
				return fmt.Errorf("load %s: %w", base, err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), ut)
			}
			verb := "Created"
			if lm == types.LoadModeAppend {
				verb = "Appended to"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s table %s from %s\n", verb, ut.Name, base)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "target table (default: file base name)")
	cmd.Flags().StringVar(&mode, "mode", "", "create or append (default create)")
	return cmd
}

func (a *app) newTableSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "save <name> <sql>",
		Short:   "Materialize a query as a new table",
		Example: `  quackbook table save north "SELECT * FROM orders WHERE region = 'north'"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ut, err := s.Tables().CreateFromQuery(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("save table: %w", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), ut)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created table %s\n", ut.Name)
			return nil
		},
	}
}

func (a *app) newTableSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <name>",
		Short: "Show a table's columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			cols, err := s.Tables().Schema(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("table schema: %w", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), cols)
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "COLUMN\tTYPE")
			for _, c := range cols {
				fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Type)
			}
			return w.Flush()
		},
	}
}

func (a *app) newTablePreviewCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview <name>",
		Short: "Show the first rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.Tables().Preview(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("preview table: %w", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", types.DefaultPreviewLimit,
		fmt.Sprintf("rows to show (max %d)", types.MaxPreviewLimit))
	return cmd
}

func (a *app) newTableDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a table and its provenance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Tables().Drop(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{"dropped": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s\n", args[0])
			return nil
		},
	}
}
