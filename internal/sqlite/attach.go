package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// aliasLocks serializes attach sessions per alias so that one operation's
// DETACH can never remove another's in-flight attachment.
type aliasLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lock blocks until alias is free and returns the unlock function.
func (a *aliasLocks) lock(alias string) func() {
	a.mu.Lock()
	if a.locks == nil {
		a.locks = make(map[string]*sync.Mutex)
	}
	l, ok := a.locks[alias]
	if !ok {
		l = &sync.Mutex{}
		a.locks[alias] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// withAttached attaches the database file at path as alias on a pinned
// connection, runs fn on that connection and detaches. fn must not call
// acquire. The alias is never left attached on a pooled connection: if
// DETACH fails the connection is discarded.
func (b *Backend) withAttached(ctx context.Context, path, alias string, fn func(conn *sql.Conn) error) (err error) {
	unlock := b.aliases.lock(alias)
	defer unlock()

	db, release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("pinning connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+quoteIdent(alias), path); err != nil {
		return fmt.Errorf("attaching %s: %w", alias, err)
	}
	b.log.WithField("alias", alias).WithField("path", path).Debug("attached")

	err = fn(conn)

	if derr := detach(ctx, conn, alias); derr != nil {
		b.log.WithError(derr).WithField("alias", alias).Error("detach failed, discarding connection")
		if rerr := conn.Raw(func(any) error { return driver.ErrBadConn }); rerr != nil && rerr != driver.ErrBadConn {
			derr = multierror.Append(derr, rerr)
		}
		if err == nil {
			return derr
		}
		return multierror.Append(err, derr)
	}
	return err
}

// detach runs even if ctx is already canceled.
func detach(ctx context.Context, conn *sql.Conn, alias string) error {
	if _, err := conn.ExecContext(context.WithoutCancel(ctx), "DETACH DATABASE "+quoteIdent(alias)); err != nil {
		return fmt.Errorf("detaching %s: %w", alias, err)
	}
	return nil
}
