package sqlexec

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stephenafamo/scan"
)

// DataSource hands out live connections. It is shared with the [Template],
// never owned by it.
type DataSource interface {
	Connection(ctx context.Context) (Connection, error)
}

// Connection is a single connection leased from a [DataSource]
type Connection interface {
	PrepareContext(ctx context.Context, query string) (Statement, error)
	// AutoCommit reports whether every statement on the connection is its
	// own transaction. A connection enlisted in a transaction returns false
	// and must be left for the transaction owner to release.
	AutoCommit(ctx context.Context) (bool, error)
	// Close gives the connection back to the data source
	Close() error
}

// Statement is a prepared statement. The args are bound positionally to
// the placeholders of the query it was prepared from.
type Statement interface {
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, args ...any) (scan.Rows, error)
	Close() error
}

// ReleaseConnection closes conn only if it is in auto-commit mode.
// Connections taking part in a transaction are left open.
//
// If the auto-commit status cannot be read the connection is still closed
// and the status error is returned together with any close error.
func ReleaseConnection(ctx context.Context, conn Connection) error {
	if conn == nil {
		return nil
	}

	autoCommit, err := conn.AutoCommit(ctx)
	if err != nil {
		return errors.Join(err, conn.Close())
	}

	if !autoCommit {
		return nil
	}

	return conn.Close()
}
