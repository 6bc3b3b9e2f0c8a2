package cli

import "github.com/spf13/cobra"

func (a *app) newQueryCmd() *cobra.Command {
	var (
		allow []string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a statement against the selected tables",
		Long: "Run a read statement after checking it against --allow. Results are\n" +
			"capped at --limit rows (default query_limit from config).",
		Example: `  quackbook query "SELECT region, SUM(amount) FROM orders GROUP BY 1" --allow orders`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if limit <= 0 {
				limit = s.settings.QueryLimit
			}
			res, err := s.Query(cmd.Context(), args[0], allow, limit)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringSliceVar(&allow, "allow", nil, "tables the statement may read")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to return")
	return cmd
}
