package main

import (
	"context"

	"github.com/stephenafamo/scan"
	"github.com/stephenafamo/sqlexec"
)

// columnRecorder keeps the column names of the last result set read through
// a wrapped data source, so headers are known even when there are no rows
type columnRecorder struct {
	columns []string
}

func (r *columnRecorder) wrap(ds sqlexec.DataSource) sqlexec.DataSource {
	return recordingDataSource{ds: ds, rec: r}
}

type recordingDataSource struct {
	ds  sqlexec.DataSource
	rec *columnRecorder
}

func (d recordingDataSource) Connection(ctx context.Context) (sqlexec.Connection, error) {
	conn, err := d.ds.Connection(ctx)
	if err != nil {
		return nil, err
	}

	return recordingConnection{Connection: conn, rec: d.rec}, nil
}

type recordingConnection struct {
	sqlexec.Connection
	rec *columnRecorder
}

func (c recordingConnection) PrepareContext(ctx context.Context, query string) (sqlexec.Statement, error) {
	stmt, err := c.Connection.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return recordingStatement{Statement: stmt, rec: c.rec}, nil
}

type recordingStatement struct {
	sqlexec.Statement
	rec *columnRecorder
}

func (s recordingStatement) QueryContext(ctx context.Context, args ...any) (scan.Rows, error) {
	rows, err := s.Statement.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	s.rec.columns = cols

	return rows, nil
}
