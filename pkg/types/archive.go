package types

import "fmt"

// DataMode selects which data tables travel with an exported archive.
// Every mode includes the notebook row and its cells.
type DataMode string

// Data inclusion policies.
const (
	DataModeNone             DataMode = "none"
	DataModeQueryResults     DataMode = "query-results"
	DataModeReferencedTables DataMode = "referenced-tables"
	DataModeFullDB           DataMode = "full-db"
)

// DefaultDataMode is used when the caller does not choose a policy.
const DefaultDataMode = DataModeReferencedTables

// ParseDataMode converts s into a DataMode. An empty string yields the
// default mode.
func ParseDataMode(s string) (DataMode, error) {
	switch m := DataMode(s); m {
	case "":
		return DefaultDataMode, nil
	case DataModeNone, DataModeQueryResults, DataModeReferencedTables, DataModeFullDB:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDataMode, s)
	}
}

// ExportResult describes a finished archive. The file at Path is complete
// and closed; the caller owns it and removes it when done.
type ExportResult struct {
	Path     string    `json:"path"`
	Notebook *Notebook `json:"notebook"`
	Mode     DataMode  `json:"mode"`
	Tables   []string  `json:"tables"`
	Warnings []string  `json:"warnings,omitempty"`
}

// ImportResult describes a merged archive. Tables lists data tables created
// in the live database; Skipped lists archive tables whose names already
// existed and were left untouched.
type ImportResult struct {
	Notebook *Notebook `json:"notebook"`
	Tables   []string  `json:"tables"`
	Skipped  []string  `json:"skipped,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}
