package types

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty data dir returns ErrDataDirEmpty",
			config:  Config{},
			wantErr: ErrDataDirEmpty,
		},
		{
			name:    "database with a directory returns ErrDatabaseInvalid",
			config:  Config{DataDir: "/tmp/data", Database: "sub/quack.db"},
			wantErr: ErrDatabaseInvalid,
		},
		{
			name:    "database with archive extension returns ErrArchiveExtReused",
			config:  Config{DataDir: "/tmp/data", Database: "live.quackdb"},
			wantErr: ErrArchiveExtReused,
		},
		{
			name:    "defaults are valid",
			config:  Config{DataDir: "/tmp/data"},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigPaths(t *testing.T) {
	c := Config{DataDir: "/srv/quack"}
	if got, want := c.DatabasePath(), filepath.Join("/srv/quack", DefaultDatabase); got != want {
		t.Errorf("DatabasePath() = %q, want %q", got, want)
	}
	if got, want := c.GetExportDir(), filepath.Join("/srv/quack", DefaultExportDir); got != want {
		t.Errorf("GetExportDir() = %q, want %q", got, want)
	}

	c.ExportDir = "/var/archives"
	if got := c.GetExportDir(); got != "/var/archives" {
		t.Errorf("absolute export dir = %q, want /var/archives", got)
	}
	c.Database = "other.db"
	if got, want := c.DatabasePath(), filepath.Join("/srv/quack", "other.db"); got != want {
		t.Errorf("DatabasePath() = %q, want %q", got, want)
	}
}
