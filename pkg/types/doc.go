// Package types defines the Workspace and store interfaces, entity types, and
// standard errors for the quackbook notebook store.
//
// A Workspace owns one embedded database. Notebooks (and the legacy
// "document" kind) hold ordered SQL and markdown cells. Archives are
// single-file database snapshots produced by Export and consumed by Import.
package types
