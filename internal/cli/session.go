package cli

import (
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/quackbook/pkg/sqlite"
	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// session is an open workspace plus the settings it was opened with.
type session struct {
	types.Workspace
	settings *settings
	log      *logrus.Entry
}

// newLogger builds the CLI logger. Logs go to stderr so command output
// stays parseable.
func (a *app) newLogger(level logrus.Level) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(a.stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if a.flags.jsonMode {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logrus.NewEntry(logger)
}

// openSession resolves settings and opens the workspace. The caller must
// defer Close.
func (a *app) openSession() (*session, error) {
	s, err := a.resolveSettings()
	if err != nil {
		return nil, err
	}
	log := a.newLogger(s.LogLevel)

	ws := sqlite.NewBackendWithLogger(log.WithField("component", "sqlite"))
	if err := ws.Open(s.Workspace); err != nil {
		return nil, systemErr("open workspace: %w", err)
	}
	return &session{Workspace: ws, settings: s, log: log}, nil
}

// Close closes the workspace and logs a failure instead of masking the
// command's own result.
func (s *session) Close() {
	if err := s.Workspace.Close(); err != nil {
		s.log.WithError(err).Error("closing workspace")
	}
}
