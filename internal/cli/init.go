package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/quackbook/internal/paths"
	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// configFile is the structure init writes to config.yaml.
type configFile struct {
	DataDir    string `yaml:"data_dir,omitempty"`
	ExportDir  string `yaml:"export_dir"`
	Database   string `yaml:"database"`
	LogLevel   string `yaml:"log_level"`
	QueryLimit int    `yaml:"query_limit"`
}

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the workspace",
		Long: "Create the configuration and data directories, write config.yaml if it is\n" +
			"missing, and create the live database with its metadata tables.",
		Args: cobra.NoArgs,
		RunE: a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, _ []string) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return systemErr("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return systemErr("create config directory: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), a.flags.dataDir); err != nil {
		return systemErr("write config: %w", err)
	}

	s, err := a.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if a.flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"config_dir": configDir,
			"database":   s.settings.Workspace.DatabasePath(),
			"export_dir": s.settings.Workspace.GetExportDir(),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Workspace initialized")
	fmt.Fprintf(out, "  config:   %s\n", filepath.Join(configDir, configFileExt))
	fmt.Fprintf(out, "  database: %s\n", s.settings.Workspace.DatabasePath())
	fmt.Fprintf(out, "  exports:  %s\n", s.settings.Workspace.GetExportDir())
	return nil
}

// writeConfigIfMissing creates config.yaml with default values. An explicit
// dataDir is recorded so later runs find the same workspace. An existing
// file is left alone.
func writeConfigIfMissing(path, dataDir string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		dataDir = abs
	}
	cfg := configFile{
		DataDir:    dataDir,
		ExportDir:  types.DefaultExportDir,
		Database:   types.DefaultDatabase,
		LogLevel:   defaultLogLevel,
		QueryLimit: types.DefaultQueryLimit,
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
