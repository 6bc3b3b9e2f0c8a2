// Package sqlite implements the quackbook Workspace on an embedded SQLite
// database: notebook and metadata persistence, the query runner, and the
// archive export/import engine.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/quackbook/internal/sqlref"
	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// Compile-time interface check.
var _ types.Workspace = (*Backend)(nil)

// querier is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
// Persistence helpers take one so they can run on a pinned connection or
// inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Backend implements types.Workspace using SQLite as the embedded engine.
// It is constructed unopened; Open binds it to a database file and Close
// releases it. Archive attach work is serialized per alias.
type Backend struct {
	mu     sync.RWMutex
	open   bool
	config types.Config
	db     *sql.DB

	log       *logrus.Entry
	extractor types.ReferenceExtractor
	aliases   aliasLocks

	notebooks *notebooksTable
	files     *filesTable
	tables    *tablesTable
	queries   *queriesTable
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger routes backend logs through entry.
func WithLogger(entry *logrus.Entry) Option {
	return func(b *Backend) {
		if entry != nil {
			b.log = entry
		}
	}
}

// WithExtractor replaces the heuristic table-reference extractor used by
// export, saved queries and the query runner.
func WithExtractor(x types.ReferenceExtractor) Option {
	return func(b *Backend) {
		if x != nil {
			b.extractor = x
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not open; call Open with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		log:       logrus.WithField("component", "sqlite"),
		extractor: sqlref.Extractor{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.notebooks = &notebooksTable{backend: b}
	b.files = &filesTable{backend: b}
	b.tables = &tablesTable{backend: b}
	b.queries = &queriesTable{backend: b}
	return b
}

// Open creates DataDir and the export directory if needed, opens the live
// database and ensures the metadata schema. Existing data is kept.
// Returns ErrAlreadyOpen if already open.
func (b *Backend) Open(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return types.ErrAlreadyOpen
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.MkdirAll(config.GetExportDir(), 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}

	dsn := config.DatabasePath() + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := ensureSchema(context.Background(), db); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.config = config
	b.open = true

	b.log.WithField("path", config.DatabasePath()).Debug("database opened")
	return nil
}

// Close releases the database connection. After Close, all operations
// return ErrBackendClosed. Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	b.open = false
	db := b.db
	b.db = nil
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// acquire returns the live handle under the read lock. The caller must call
// release when done. Nothing that holds the handle may call acquire again.
func (b *Backend) acquire() (db *sql.DB, release func(), err error) {
	b.mu.RLock()
	if !b.open {
		b.mu.RUnlock()
		return nil, nil, types.ErrBackendClosed
	}
	return b.db, b.mu.RUnlock, nil
}

// Notebooks returns the notebook store.
func (b *Backend) Notebooks() types.NotebookStore { return b.notebooks }

// Files returns the stored-file store.
func (b *Backend) Files() types.FileStore { return b.files }

// Tables returns the table provenance store.
func (b *Backend) Tables() types.TableStore { return b.tables }

// Queries returns the saved-query store.
func (b *Backend) Queries() types.QueryStore { return b.queries }

// DB exposes the live handle for tests and maintenance commands.
// Returns nil when closed.
func (b *Backend) DB() *sql.DB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db
}

// Config returns the configuration the backend was opened with.
func (b *Backend) Config() types.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// newID generates a UUID v7 for entity and archive ids.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// timeLayout is fixed-width so that text order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts the store's own layout and the engine's
// CURRENT_TIMESTAMP form, which older archives may carry.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// quoteIdent quotes name as an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// nullable maps the empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
