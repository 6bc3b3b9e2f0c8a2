// Package cli implements the quackbook command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

// app carries per-invocation state so commands can be built fresh in tests.
type app struct {
	flags  rootFlags
	stderr io.Writer
}

// NewRootCmd creates the top-level "quackbook" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "quackbook",
		Short: "Local-first SQL notebooks with portable archives",
		Long: "Quackbook keeps notebooks of SQL and markdown cells over an embedded\n" +
			"database and exports them as self-contained archive files.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newNotebookCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newImportCmd())
	root.AddCommand(a.newTableCmd())
	root.AddCommand(a.newRefsCmd())
	root.AddCommand(a.newValidateCmd())
	root.AddCommand(a.newQueryCmd())
	root.AddCommand(a.newMarkdownCmd())

	root.SetErr(a.stderr)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	os.Exit(exitCode(err))
}

// sysError marks failures of the environment rather than of the request.
type sysError struct{ err error }

func (e *sysError) Error() string { return e.err.Error() }
func (e *sysError) Unwrap() error { return e.err }

// systemErr wraps err so that it exits with exitSysError.
func systemErr(format string, args ...any) error {
	return &sysError{err: fmt.Errorf(format, args...)}
}

// userErrors are the outcomes caused by what the user asked for.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidName,
	types.ErrInvalidKind,
	types.ErrInvalidCellType,
	types.ErrInvalidSQL,
	types.ErrInvalidDataMode,
	types.ErrInvalidTableName,
	types.ErrTableExists,
	types.ErrInvalidLoadMode,
	types.ErrInvalidFile,
	types.ErrNoNotebook,
	types.ErrNoTablesSelected,
	types.ErrAccessDenied,
	errConfig,
}

// exitCode maps err to a process exit code. Unclassified errors come from
// cobra argument parsing and count as user errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	var se *sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}
