package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/quackbook/internal/sqlref"
	"github.com/mesh-intelligence/quackbook/pkg/types"
)

func (a *app) newRefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refs <sql>",
		Short: "List the tables a statement reads from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := sqlref.Extract(args[0])
			if refs == nil {
				refs = []string{}
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string][]string{"tables": refs})
			}
			for _, t := range refs {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func (a *app) newValidateCmd() *cobra.Command {
	var allow []string
	cmd := &cobra.Command{
		Use:   "validate <sql>",
		Short: "Check a statement against the tables it may read",
		Example: `  quackbook validate "SELECT * FROM orders JOIN customers USING (id)" --allow orders`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := sqlref.ValidateAccess(args[0], allow)
			if a.flags.jsonMode {
				if jerr := printJSON(cmd.OutOrStdout(), validationReport(err)); jerr != nil {
					return jerr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&allow, "allow", nil, "tables the statement may read")
	return cmd
}

type validation struct {
	Valid        bool     `json:"valid"`
	Unauthorized []string `json:"unauthorized,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func validationReport(err error) validation {
	if err == nil {
		return validation{Valid: true}
	}
	v := validation{Error: err.Error()}
	var accessErr *types.AccessError
	if errors.As(err, &accessErr) {
		v.Unauthorized = accessErr.Tables
	}
	return v
}
