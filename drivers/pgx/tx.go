package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// txKey binds a transaction to the pool or connection that started it
type txKey struct {
	owner any
}

type transactionBeginner interface {
	BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error)
}

func beginTx(ctx context.Context, opts pgx.TxOptions, exec transactionBeginner) (Tx, error) {
	ctx, cancel := context.WithCancel(ctx)
	tx, err := exec.BeginTx(ctx, opts)
	if err != nil {
		cancel()
		return Tx{}, err
	}

	// pgx does not automatically rollback the transaction
	// when the context is done, so we do it here
	go func() {
		<-ctx.Done()
		tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck
	}()

	return Tx{tx: tx, cancel: cancel}, nil
}

// Tx is a transaction started with [Pool.BeginTx] or [Conn.BeginTx].
// Bind it to a context with [WithTx] so that statements run by a
// [sqlexec.Template] join it.
type Tx struct {
	tx     pgx.Tx
	owner  any
	cancel context.CancelFunc
}

// WithTx returns a context in which connections obtained from the
// transaction's pool (or connection) are the transaction's own.
// Such connections report auto-commit as false and are never released by
// the template.
func WithTx(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{tx.owner}, tx)
}

// Conn returns the underlying connection
func (t Tx) Conn() *pgx.Conn {
	return t.tx.Conn()
}

// Commit commits the transaction and releases its connection
// Committing an already closed transaction is not an error
func (t Tx) Commit(ctx context.Context) error {
	err := t.tx.Commit(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	if t.cancel != nil {
		t.cancel()
	}

	return nil
}

// Rollback rolls back the transaction and releases its connection
// Rolling back an already closed transaction is not an error
func (t Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	if t.cancel != nil {
		t.cancel()
	}

	return nil
}
