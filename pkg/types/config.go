package types

import (
	"errors"
	"path/filepath"
)

// Config holds the locations a Workspace needs to open.
type Config struct {
	DataDir   string `json:"data_dir" yaml:"data_dir"`
	Database  string `json:"database" yaml:"database"`
	ExportDir string `json:"export_dir" yaml:"export_dir"`
}

// Defaults applied when a Config field is empty.
const (
	DefaultDatabase  = "quack.db"
	DefaultExportDir = "exports"
	ArchiveExt       = ".quackdb"
)

// Config validation errors.
var (
	ErrDataDirEmpty     = errors.New("data dir must not be empty")
	ErrDatabaseInvalid  = errors.New("database must be a file name, not a path")
	ErrArchiveExtReused = errors.New("database file must not use the archive extension")
)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.Database != "" && filepath.Base(c.Database) != c.Database {
		return ErrDatabaseInvalid
	}
	if filepath.Ext(c.Database) == ArchiveExt {
		return ErrArchiveExtReused
	}
	return nil
}

// DatabasePath returns the full path of the live database file.
func (c Config) DatabasePath() string {
	name := c.Database
	if name == "" {
		name = DefaultDatabase
	}
	return filepath.Join(c.DataDir, name)
}

// GetExportDir returns the managed directory for archives and import temp
// files. Relative values are resolved against DataDir.
func (c Config) GetExportDir() string {
	dir := c.ExportDir
	if dir == "" {
		dir = DefaultExportDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.DataDir, dir)
}
