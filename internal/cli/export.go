package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

func (a *app) newExportCmd() *cobra.Command {
	var mode, out string
	cmd := &cobra.Command{
		Use:   "export <notebook-id>",
		Short: "Export a notebook to an archive file",
		Long: "Write the notebook, its cells and the data selected by --mode to a\n" +
			"self-contained .quackdb archive.\n\n" +
			"Modes: none, query-results, referenced-tables (default), full-db.",
		Example: `  quackbook export 0190c1f4-... --mode full-db --out ./revenue.quackdb`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataMode, err := types.ParseDataMode(mode)
			if err != nil {
				return err
			}

			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.Export(cmd.Context(), args[0], dataMode)
			if err != nil {
				return err
			}
			if out != "" {
				dst, err := moveFile(res.Path, out)
				if err != nil {
					return systemErr("move archive: %w", err)
				}
				res.Path = dst
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), res)
			}
			w := cmd.OutOrStdout()
			size := "unknown size"
			if info, err := os.Stat(res.Path); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(w, "Exported %q to %s (%s)\n", res.Notebook.Name, res.Path, size)
			fmt.Fprintf(w, "  mode:   %s\n", res.Mode)
			fmt.Fprintf(w, "  tables: %s\n", joinOrDash(res.Tables))
			printWarnings(w, res.Warnings)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(types.DefaultDataMode), "data inclusion mode")
	cmd.Flags().StringVarP(&out, "out", "o", "", "move the archive to this path")
	return cmd
}

// moveFile moves src to dst and returns the final path. A directory dst
// keeps the source file name. Renames across filesystems fall back to a
// copy. An existing file at dst is refused.
func moveFile(src, dst string) (string, error) {
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("%s already exists", dst)
	}
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	return dst, os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
