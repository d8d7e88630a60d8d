package sqlexec

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stephenafamo/scan"
)

// fakeDataSource records every connection it hands out
type fakeDataSource struct {
	mu    sync.Mutex
	conns []*fakeConn

	connErr       error
	autoCommit    bool
	autoCommitErr error
	closeErr      error
	prepareErr    error
	stmtCloseErr  error
	execErr       error
	queryErr      error
	affected      int64
	columns       []string
	data          [][]any
	iterErr       error
}

func newFakeDataSource() *fakeDataSource {
	return &fakeDataSource{autoCommit: true}
}

func (f *fakeDataSource) Connection(context.Context) (Connection, error) {
	if f.connErr != nil {
		return nil, f.connErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	c := &fakeConn{ds: f}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeDataSource) lastConn(t *testing.T) *fakeConn {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.conns) == 0 {
		t.Fatal("no connection was acquired")
	}
	return f.conns[len(f.conns)-1]
}

type fakeConn struct {
	ds     *fakeDataSource
	stmts  []*fakeStmt
	closed int
}

func (c *fakeConn) PrepareContext(_ context.Context, query string) (Statement, error) {
	if c.ds.prepareErr != nil {
		return nil, c.ds.prepareErr
	}

	s := &fakeStmt{conn: c, query: query}
	c.stmts = append(c.stmts, s)
	return s, nil
}

func (c *fakeConn) AutoCommit(context.Context) (bool, error) {
	return c.ds.autoCommit, c.ds.autoCommitErr
}

func (c *fakeConn) Close() error {
	c.closed++
	return c.ds.closeErr
}

type fakeStmt struct {
	conn   *fakeConn
	query  string
	args   [][]any
	rows   []*fakeRows
	closed int
}

func (s *fakeStmt) ExecContext(_ context.Context, args ...any) (sql.Result, error) {
	s.args = append(s.args, args)
	if s.conn.ds.execErr != nil {
		return nil, s.conn.ds.execErr
	}
	return driver.RowsAffected(s.conn.ds.affected), nil
}

func (s *fakeStmt) QueryContext(_ context.Context, args ...any) (scan.Rows, error) {
	s.args = append(s.args, args)
	if s.conn.ds.queryErr != nil {
		return nil, s.conn.ds.queryErr
	}

	r := &fakeRows{
		columns: s.conn.ds.columns,
		data:    s.conn.ds.data,
		iterErr: s.conn.ds.iterErr,
	}
	s.rows = append(s.rows, r)
	return r, nil
}

func (s *fakeStmt) Close() error {
	s.closed++
	return s.conn.ds.stmtCloseErr
}

type fakeRows struct {
	columns []string
	data    [][]any
	iterErr error
	pos     int
	visited int
	closed  bool
	err     error
}

func (r *fakeRows) Columns() ([]string, error) {
	return r.columns, nil
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		r.err = r.iterErr
		return false
	}

	r.pos++
	r.visited++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) != len(r.columns) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.columns), len(dest))
	}

	row := r.data[r.pos-1]
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		sv := reflect.ValueOf(row[i])
		if !sv.IsValid() {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		if !sv.Type().AssignableTo(dv.Type()) {
			return fmt.Errorf("cannot scan %T into %s", row[i], dv.Type())
		}
		dv.Set(sv)
	}

	return nil
}

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func (r *fakeRows) Err() error {
	return r.err
}

func TestReleaseConnection(t *testing.T) {
	ctx := context.Background()
	statusErr := errors.New("connection is gone")
	closeErr := errors.New("close failed")

	tests := []struct {
		name          string
		autoCommit    bool
		autoCommitErr error
		closeErr      error
		closed        int
		expectedErrs  []error
	}{
		{name: "auto-commit", autoCommit: true, closed: 1},
		{name: "in transaction", autoCommit: false, closed: 0},
		{
			name:         "close fails",
			autoCommit:   true,
			closeErr:     closeErr,
			closed:       1,
			expectedErrs: []error{closeErr},
		},
		{
			name:          "status unknown",
			autoCommitErr: statusErr,
			closed:        1,
			expectedErrs:  []error{statusErr},
		},
		{
			name:          "status unknown and close fails",
			autoCommitErr: statusErr,
			closeErr:      closeErr,
			closed:        1,
			expectedErrs:  []error{statusErr, closeErr},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ds := newFakeDataSource()
			ds.autoCommit = tc.autoCommit
			ds.autoCommitErr = tc.autoCommitErr
			ds.closeErr = tc.closeErr

			conn, err := ds.Connection(ctx)
			if err != nil {
				t.Fatal(err)
			}

			err = ReleaseConnection(ctx, conn)
			if len(tc.expectedErrs) == 0 && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, expected := range tc.expectedErrs {
				if !errors.Is(err, expected) {
					t.Fatalf("expected %v in %v", expected, err)
				}
			}

			if got := ds.lastConn(t).closed; got != tc.closed {
				t.Fatalf("expected connection to be closed %d times, got %d", tc.closed, got)
			}
		})
	}

	if err := ReleaseConnection(ctx, nil); err != nil {
		t.Fatalf("releasing a nil connection: %v", err)
	}
}
