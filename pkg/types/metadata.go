package types

import (
	"fmt"
	"time"
)

// StoredFile records an uploaded file. Rows are immutable once written.
type StoredFile struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UserTable tracks provenance for a data table the store created. It holds
// no data. SourceFileID is empty for tables created from a query.
type UserTable struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SourceFileID string    `json:"source_file_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoadMode says how TableStore.CreateFromFile treats its target table.
type LoadMode string

// Load modes.
const (
	LoadModeCreate LoadMode = "create"
	LoadModeAppend LoadMode = "append"
)

// ParseLoadMode converts s into a LoadMode. An empty string yields
// LoadModeCreate.
func ParseLoadMode(s string) (LoadMode, error) {
	switch m := LoadMode(s); m {
	case "":
		return LoadModeCreate, nil
	case LoadModeCreate, LoadModeAppend:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLoadMode, s)
	}
}

// Preview limits.
const (
	DefaultPreviewLimit = 100
	MaxPreviewLimit     = 1000
)
