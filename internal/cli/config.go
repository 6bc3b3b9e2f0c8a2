package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/quackbook/internal/paths"
	"github.com/mesh-intelligence/quackbook/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// Config keys.
	cfgKeyDataDir    = "data_dir"
	cfgKeyExportDir  = "export_dir"
	cfgKeyDatabase   = "database"
	cfgKeyLogLevel   = "log_level"
	cfgKeyQueryLimit = "query_limit"

	defaultLogLevel = "info"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# quackbook configuration

# Data directory (optional; overridable by --data-dir and QUACKBOOK_DATA_DIR)
# data_dir:

# Archive and import scratch directory, relative to data_dir unless absolute
export_dir: exports

# Live database file name inside data_dir
database: quack.db

# debug, info, warn or error
log_level: info

# Rows returned by "quackbook query" unless --limit is given (max 10000)
query_limit: 1000
`

// errConfig marks configuration values the user must fix.
var errConfig = errors.New("invalid configuration")

// settings is the resolved configuration for one invocation.
type settings struct {
	ConfigDir  string
	Workspace  types.Config
	LogLevel   logrus.Level
	QueryLimit int
}

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run. A missing file is not
// an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyExportDir, types.DefaultExportDir)
	v.SetDefault(cfgKeyDatabase, types.DefaultDatabase)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyQueryLimit, types.DefaultQueryLimit)
	v.SetEnvPrefix("QUACKBOOK")
	for _, key := range []string{cfgKeyLogLevel, cfgKeyQueryLimit} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in configDir.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// resolveSettings applies flag, config and environment precedence.
func (a *app) resolveSettings() (*settings, error) {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return nil, systemErr("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return nil, systemErr("load config: %w", err)
	}

	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, systemErr("resolve data dir: %w", err)
	}
	exportDir, err := paths.ExpandHome(v.GetString(cfgKeyExportDir))
	if err != nil {
		return nil, systemErr("resolve export dir: %w", err)
	}

	levelName := v.GetString(cfgKeyLogLevel)
	if a.flags.logLevel != "" {
		levelName = a.flags.logLevel
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", errConfig, levelName)
	}

	limit := v.GetInt(cfgKeyQueryLimit)
	if limit <= 0 || limit > types.MaxQueryLimit {
		limit = types.DefaultQueryLimit
	}

	s := &settings{
		ConfigDir: configDir,
		Workspace: types.Config{
			DataDir:   dataDir,
			Database:  v.GetString(cfgKeyDatabase),
			ExportDir: exportDir,
		},
		LogLevel:   level,
		QueryLimit: limit,
	}
	if err := s.Workspace.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return s, nil
}
