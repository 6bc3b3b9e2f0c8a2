// Package sqlite provides the public factory for the SQLite workspace while
// keeping its implementation internal.
package sqlite

import (
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/quackbook/internal/sqlite"
	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// NewBackend creates a new SQLite workspace. It is not open; call Open with
// a Config to initialize.
//
// Example:
//
//	ws := sqlite.NewBackend()
//	err := ws.Open(types.Config{DataDir: "./data"})
//	defer ws.Close()
func NewBackend() types.Workspace {
	return sqlite.NewBackend()
}

// NewBackendWithLogger is NewBackend with backend logs routed through log.
func NewBackendWithLogger(log *logrus.Entry) types.Workspace {
	return sqlite.NewBackend(sqlite.WithLogger(log))
}
