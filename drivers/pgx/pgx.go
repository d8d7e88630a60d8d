package pgx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/scan"
	"github.com/stephenafamo/sqlexec"
)

// ErrConnClosed is returned when the auto-commit status of a closed
// connection is requested
var ErrConnClosed = errors.New("pgx: connection is closed")

// New works just like [pgxpool.New], but converts the returned [*pgxpool.Pool] to [Pool]
func New(ctx context.Context, dsn string) (Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	return NewPool(pool), err
}

// NewWithConfig works just like [pgxpool.NewWithConfig], but converts the returned [*pgxpool.Pool] to [Pool]
func NewWithConfig(ctx context.Context, config *pgxpool.Config) (Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, config)
	return NewPool(pool), err
}

// NewPool wraps an [*pgxpool.Pool] and returns a type that implements [sqlexec.DataSource] but still
// retains the expected methods used by *pgxpool.Pool
// This is useful when an existing *pgxpool.Pool is used in other places in the codebase
func NewPool(pool *pgxpool.Pool) Pool {
	return Pool{pool}
}

// Pool is similar to *pgxpool.Pool but implements [sqlexec.DataSource]
type Pool struct {
	*pgxpool.Pool
}

// Connection returns the connection of the transaction bound to ctx with
// [WithTx], if one was started from this pool.
// Otherwise a connection is acquired from the pool and released back to it
// when closed.
func (p Pool) Connection(ctx context.Context) (sqlexec.Connection, error) {
	if tx, ok := ctx.Value(txKey{p.Pool}).(Tx); ok {
		return txConn{tx.tx}, nil
	}

	c, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return poolConn{c}, nil
}

// BeginTx is similar to [*pgxpool.Pool.BeginTx], but return a transaction that
// can be bound to a context with [WithTx]
func (p Pool) BeginTx(ctx context.Context, opts pgx.TxOptions) (Tx, error) {
	tx, err := beginTx(ctx, opts, p.Pool)
	if err != nil {
		return Tx{}, err
	}

	tx.owner = p.Pool
	return tx, nil
}

// NewConn wraps an [*pgx.Conn] and returns a type that implements [sqlexec.DataSource]
// The connection stays owned by the caller: it is handed out for every
// statement and never closed.
func NewConn(conn *pgx.Conn) Conn {
	return Conn{conn}
}

// Conn is similar to *pgx.Conn but implements [sqlexec.DataSource]
type Conn struct {
	*pgx.Conn
}

func (c Conn) Connection(ctx context.Context) (sqlexec.Connection, error) {
	if tx, ok := ctx.Value(txKey{c.Conn}).(Tx); ok {
		return txConn{tx.tx}, nil
	}

	return singleConn{c.Conn}, nil
}

// BeginTx is similar to [*pgx.Conn.BeginTx], but return a transaction that
// can be bound to a context with [WithTx]
func (c Conn) BeginTx(ctx context.Context, opts pgx.TxOptions) (Tx, error) {
	tx, err := beginTx(ctx, opts, c.Conn)
	if err != nil {
		return Tx{}, err
	}

	tx.owner = c.Conn
	return tx, nil
}

type poolConn struct {
	conn *pgxpool.Conn
}

func (c poolConn) PrepareContext(ctx context.Context, query string) (sqlexec.Statement, error) {
	return prepare(ctx, c.conn.Conn(), c.conn, query)
}

// AutoCommit is always true: the pool connection belongs to this call alone,
// even when a statement leaves it inside a transaction block.
// Release destroys connections that are not idle.
func (c poolConn) AutoCommit(context.Context) (bool, error) {
	return true, nil
}

func (c poolConn) Close() error {
	c.conn.Release()
	return nil
}

type singleConn struct {
	conn *pgx.Conn
}

func (c singleConn) PrepareContext(ctx context.Context, query string) (sqlexec.Statement, error) {
	return prepare(ctx, c.conn, c.conn, query)
}

func (c singleConn) AutoCommit(context.Context) (bool, error) {
	return autoCommit(c.conn.PgConn())
}

// the caller of NewConn owns the connection
func (c singleConn) Close() error {
	return nil
}

type txConn struct {
	tx pgx.Tx
}

func (c txConn) PrepareContext(ctx context.Context, query string) (sqlexec.Statement, error) {
	return prepare(ctx, c.tx.Conn(), c.tx, query)
}

func (c txConn) AutoCommit(context.Context) (bool, error) {
	return false, nil
}

// the transaction owner releases the connection on Commit or Rollback
func (c txConn) Close() error {
	return nil
}

// autoCommit reads the transaction status the server reported in its last
// ReadyForQuery message
func autoCommit(pc *pgconn.PgConn) (bool, error) {
	if pc.IsClosed() {
		return false, ErrConnClosed
	}

	return pc.TxStatus() == 'I', nil
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// prepare creates a server side prepared statement named after its SQL so
// that pgx executes it by name
func prepare(ctx context.Context, conn *pgx.Conn, q querier, query string) (sqlexec.Statement, error) {
	sd, err := conn.Prepare(ctx, query, query)
	if err != nil {
		return nil, err
	}

	return statement{conn: conn, q: q, name: sd.Name}, nil
}

type statement struct {
	conn *pgx.Conn
	q    querier
	name string
}

// ExecContext executes the statement without returning any rows. The args are for any placeholder parameters in the query.
func (s statement) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	tag, err := s.q.Exec(ctx, s.name, args...)
	return result{tag}, err
}

// QueryContext executes the statement, typically a SELECT. The args are for any placeholder parameters in the query.
func (s statement) QueryContext(ctx context.Context, args ...any) (scan.Rows, error) {
	pgxRows, err := s.q.Query(ctx, s.name, args...)
	if err != nil {
		return nil, err
	}
	return rows{pgxRows}, nil
}

// Close deallocates the statement even when the context it was prepared
// or executed with has been cancelled.
func (s statement) Close() error {
	if s.conn.IsClosed() {
		return nil
	}
	return s.conn.Deallocate(context.Background(), s.name)
}

type result struct {
	pgconn.CommandTag
}

// LastInsertId implements sql.Result.
func (r result) LastInsertId() (int64, error) {
	return 0, errors.New("pgx does not support LastInsertId")
}

// RowsAffected implements sql.Result.
func (r result) RowsAffected() (int64, error) {
	return r.CommandTag.RowsAffected(), nil
}

type rows struct {
	pgx.Rows
}

func (r rows) Close() error {
	r.Rows.Close()
	return nil
}

func (r rows) Columns() ([]string, error) {
	fields := r.FieldDescriptions()
	cols := make([]string, len(fields))

	for i, field := range fields {
		cols[i] = field.Name
	}

	return cols, nil
}
