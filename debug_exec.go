package sqlexec

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"os"

	"github.com/stephenafamo/scan"
)

// DebugPrinter is used to print queries and arguments
type DebugPrinter interface {
	PrintQuery(query string, args ...any)
}

// an implementation of the [DebugPrinter]
type writerPrinter struct{ io.Writer }

// implements [DebugPrinter]
func (w writerPrinter) PrintQuery(query string, args ...any) {
	fmt.Fprintln(w.Writer, query)
	for i, arg := range args {
		val := arg
		if valuer, ok := val.(driver.Valuer); ok {
			val, _ = valuer.Value()
		}
		fmt.Fprintf(w.Writer, "%d: %T: %v\n", i, arg, val)
	}
	fmt.Fprintf(w.Writer, "\n")
}

// Debug wraps a [DataSource] and prints the queries and args of every
// executed statement to os.Stdout
func Debug(ds DataSource) DataSource {
	return DebugToWriter(ds, nil)
}

// DebugToWriter wraps an existing [DataSource] and writes all
// queries and args to the given [io.Writer]
// if w is nil, it fallsback to [os.Stdout]
func DebugToWriter(ds DataSource, w io.Writer) DataSource {
	if w == nil {
		w = os.Stdout
	}
	return DebugToPrinter(ds, writerPrinter{w})
}

// DebugToPrinter wraps an existing [DataSource] and writes all
// queries and args to the given [DebugPrinter]
// if w is nil, it fallsback to writing to [os.Stdout]
func DebugToPrinter(ds DataSource, w DebugPrinter) DataSource {
	if w == nil {
		w = writerPrinter{os.Stdout}
	}
	return debugDataSource{printer: w, ds: ds}
}

type debugDataSource struct {
	printer DebugPrinter
	ds      DataSource
}

func (d debugDataSource) Connection(ctx context.Context) (Connection, error) {
	conn, err := d.ds.Connection(ctx)
	if err != nil {
		return nil, err
	}

	return debugConnection{Connection: conn, printer: d.printer}, nil
}

type debugConnection struct {
	Connection
	printer DebugPrinter
}

func (d debugConnection) PrepareContext(ctx context.Context, query string) (Statement, error) {
	stmt, err := d.Connection.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return debugStatement{Statement: stmt, query: query, printer: d.printer}, nil
}

type debugStatement struct {
	Statement
	query   string
	printer DebugPrinter
}

func (d debugStatement) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	d.printer.PrintQuery(d.query, args...)
	return d.Statement.ExecContext(ctx, args...)
}

func (d debugStatement) QueryContext(ctx context.Context, args ...any) (scan.Rows, error) {
	d.printer.PrintQuery(d.query, args...)
	return d.Statement.QueryContext(ctx, args...)
}
