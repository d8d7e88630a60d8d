package sqlexec

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/stephenafamo/scan"
)

var (
	_ DataSource = DB{}
	_ Connection = stdConn{}
	_ Connection = txConn{}
	_ Statement  = StdPrepared{}
)

// Open works just like [sql.Open], but converts the returned [*sql.DB] to [DB]
func Open(driverName string, dataSource string) (DB, error) {
	db, err := sql.Open(driverName, dataSource)
	return NewDB(db), err
}

// OpenDB works just like [sql.OpenDB], but converts the returned [*sql.DB] to [DB]
func OpenDB(c driver.Connector) DB {
	return NewDB(sql.OpenDB(c))
}

// NewDB wraps an [*sql.DB] and returns a type that implements [DataSource] but still
// retains the expected methods used by *sql.DB
// This is useful when an existing *sql.DB is used in other places in the codebase
func NewDB(db *sql.DB) DB {
	return DB{db}
}

// DB is similar to *sql.DB but implements [DataSource]
type DB struct {
	*sql.DB
}

// Connection returns the connection of the transaction bound to ctx with
// [WithTx], if one was started from this DB.
// Otherwise a dedicated connection is taken from the pool and is returned to
// it when closed.
func (d DB) Connection(ctx context.Context) (Connection, error) {
	if tx, ok := ctx.Value(txKey{d.DB}).(Tx); ok {
		return txConn{tx.Tx}, nil
	}

	conn, err := d.DB.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return stdConn{conn}, nil
}

// BeginTx is similar to [*sql.DB.BeginTx], but return a transaction that
// can be bound to a context with [WithTx]
func (d DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := d.DB.BeginTx(ctx, opts)
	if err != nil {
		return Tx{}, err
	}

	return Tx{Tx: tx, db: d.DB}, nil
}

// Tx is a transaction started with [DB.BeginTx].
// The caller owns it and must Commit or Rollback.
type Tx struct {
	*sql.Tx
	db *sql.DB
}

type txKey struct {
	db *sql.DB
}

// WithTx returns a context in which the [DB] that started tx hands out the
// transaction's connection instead of a pooled one
func WithTx(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{tx.db}, tx)
}

type stdConn struct {
	conn *sql.Conn
}

func (c stdConn) PrepareContext(ctx context.Context, query string) (Statement, error) {
	s, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return StdPrepared{s}, nil
}

// *sql.Conn is only ever in a transaction through *sql.Tx
func (c stdConn) AutoCommit(context.Context) (bool, error) {
	return true, nil
}

func (c stdConn) Close() error {
	return c.conn.Close()
}

type txConn struct {
	tx *sql.Tx
}

func (c txConn) PrepareContext(ctx context.Context, query string) (Statement, error) {
	s, err := c.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return StdPrepared{s}, nil
}

func (c txConn) AutoCommit(context.Context) (bool, error) {
	return false, nil
}

// the transaction owner releases the connection on Commit or Rollback
func (c txConn) Close() error {
	return nil
}

// StdPrepared wraps an [*sql.Stmt] to implement [Statement]
type StdPrepared struct {
	*sql.Stmt
}

func (s StdPrepared) QueryContext(ctx context.Context, args ...any) (scan.Rows, error) {
	return s.Stmt.QueryContext(ctx, args...)
}
