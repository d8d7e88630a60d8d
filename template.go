package sqlexec

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stephenafamo/scan"
)

const (
	OpUpdate         = "update"
	OpQuery          = "query"
	OpQueryForObject = "queryForObject"
)

// Option configures a [Template]
type Option func(*Template)

// WithLogger sets the logger failed statements are reported to.
// Defaults to [logrus.StandardLogger]
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Template) {
		t.logger = l
	}
}

// WithHooks registers hooks that run before every statement
func WithHooks(hooks ...Hook[*Invocation]) Option {
	return func(t *Template) {
		t.hooks.AppendHooks(hooks...)
	}
}

// Template executes parameterized statements against a [DataSource].
// Every call acquires its own connection and prepared statement and releases
// both before returning, so a Template is safe for concurrent use.
type Template struct {
	ds     DataSource
	logger logrus.FieldLogger
	hooks  Hooks[*Invocation, SkipHooksKey]
}

// New returns a Template using ds. The data source is not owned by the
// Template and is never closed by it.
func New(ds DataSource, opts ...Option) *Template {
	t := &Template{
		ds:     ds,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// DataSource returns the data source the Template was created with
func (t *Template) DataSource() DataSource {
	return t.ds
}

// Update executes a statement that does not return rows and returns the
// number of rows affected
func (t *Template) Update(ctx context.Context, query string, args ...any) (int64, error) {
	return execute(ctx, t, OpUpdate, query, args, func(ctx context.Context, stmt Statement, args []any) (int64, error) {
		result, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, err
		}

		return result.RowsAffected()
	})
}

// Query executes a statement and maps every row with m, in cursor order.
// A statement that matches no rows returns an empty slice.
func Query[T any](ctx context.Context, t *Template, query string, m RowMapper[T], args ...any) ([]T, error) {
	if m == nil {
		return nil, t.fail(OpQuery, query, PhasePrepare, ErrNilMapper)
	}

	return execute(ctx, t, OpQuery, query, args, func(ctx context.Context, stmt Statement, args []any) ([]T, error) {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		results := []T{}
		for rows.Next() {
			one, err := m(rows)
			if err != nil {
				return nil, mappingError{cause: err}
			}

			results = append(results, one)
		}

		if err := rows.Err(); err != nil {
			return nil, err
		}

		return results, nil
	})
}

// QueryForObject executes a statement that must return exactly one row and
// maps it with m.
// It returns [ErrNoDataFound] if there are no rows and [ErrTooManyResults]
// if there is more than one.
func QueryForObject[T any](ctx context.Context, t *Template, query string, m RowMapper[T], args ...any) (T, error) {
	if m == nil {
		var zero T
		return zero, t.fail(OpQueryForObject, query, PhasePrepare, ErrNilMapper)
	}

	return execute(ctx, t, OpQueryForObject, query, args, func(ctx context.Context, stmt Statement, args []any) (T, error) {
		var zero T

		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return zero, err
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return zero, err
			}
			return zero, resultSizeError(ErrNoDataFound, query)
		}

		one, err := m(rows)
		if err != nil {
			return zero, mappingError{cause: err}
		}

		if rows.Next() {
			return zero, resultSizeError(ErrTooManyResults, query)
		}

		if err := rows.Err(); err != nil {
			return zero, err
		}

		return one, nil
	})
}

// QueryMapped is like [Query] but maps the rows with a [scan.Mapper],
// such as [scan.StructMapper]
func QueryMapped[T any](ctx context.Context, t *Template, query string, m scan.Mapper[T], args ...any) ([]T, error) {
	if m == nil {
		return nil, t.fail(OpQuery, query, PhasePrepare, ErrNilMapper)
	}

	return execute(ctx, t, OpQuery, query, args, func(ctx context.Context, stmt Statement, args []any) ([]T, error) {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		results, err := scan.AllFromRows(ctx, markMappingErrors(m), rows)
		if err != nil {
			return nil, err
		}

		if results == nil {
			results = []T{}
		}

		return results, nil
	})
}

// QueryForObjectMapped is like [QueryForObject] but maps the row with a
// [scan.Mapper]
func QueryForObjectMapped[T any](ctx context.Context, t *Template, query string, m scan.Mapper[T], args ...any) (T, error) {
	if m == nil {
		var zero T
		return zero, t.fail(OpQueryForObject, query, PhasePrepare, ErrNilMapper)
	}

	return execute(ctx, t, OpQueryForObject, query, args, func(ctx context.Context, stmt Statement, args []any) (T, error) {
		var zero T

		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return zero, err
		}
		defer rows.Close()

		// a second row is enough to tell "exactly one" from "too many"
		results, err := scan.AllFromRows(ctx, markMappingErrors(m), &limitedRows{Rows: rows, limit: 2})
		if err != nil {
			return zero, err
		}

		switch len(results) {
		case 0:
			return zero, resultSizeError(ErrNoDataFound, query)
		case 1:
			return results[0], nil
		default:
			return zero, resultSizeError(ErrTooManyResults, query)
		}
	})
}

// markMappingErrors tags the errors of m so that they are reported with
// [PhaseMap]. Cursor errors from the rows themselves stay untagged.
func markMappingErrors[T any](m scan.Mapper[T]) scan.Mapper[T] {
	return func(ctx context.Context, cols []string) (scan.BeforeFunc, func(any) (T, error)) {
		before, after := m(ctx, cols)

		markedBefore := func(r *scan.Row) (any, error) {
			link, err := before(r)
			if err != nil {
				return nil, mappingError{cause: err}
			}
			return link, nil
		}

		markedAfter := func(link any) (T, error) {
			t, err := after(link)
			if err != nil {
				return t, mappingError{cause: err}
			}
			return t, nil
		}

		return markedBefore, markedAfter
	}
}

type statementCallback[R any] func(ctx context.Context, stmt Statement, args []any) (R, error)

// execute owns the connection and statement for a single invocation.
// fn only decides how the statement result is consumed.
func execute[R any](ctx context.Context, t *Template, op, query string, args []any, fn statementCallback[R]) (result R, err error) {
	var zero R

	if strings.TrimSpace(query) == "" {
		return zero, t.fail(op, query, PhasePrepare, ErrEmptyQuery)
	}

	inv := &Invocation{Op: op, Query: query, Args: args}
	if ctx, err = t.hooks.RunHooks(ctx, inv); err != nil {
		return zero, err
	}

	conn, err := t.ds.Connection(ctx)
	if err != nil {
		return zero, t.fail(op, query, PhaseConnect, err)
	}
	defer func() {
		relErr := ReleaseConnection(ctx, conn)
		if relErr == nil {
			return
		}

		if err != nil {
			t.logger.WithError(relErr).WithFields(logrus.Fields{
				"op":    op,
				"query": query,
			}).Warn("releasing connection after failed statement")
			return
		}

		result, err = zero, t.fail(op, query, PhaseRelease, relErr)
	}()

	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return zero, t.fail(op, query, PhasePrepare, err)
	}
	defer func() {
		closeErr := stmt.Close()
		if closeErr == nil {
			return
		}

		if err != nil {
			t.logger.WithError(closeErr).WithFields(logrus.Fields{
				"op":    op,
				"query": query,
			}).Warn("closing statement after failed statement")
			return
		}

		result, err = zero, t.fail(op, query, PhaseRelease, closeErr)
	}()

	result, err = fn(ctx, stmt, inv.Args)
	if err == nil {
		return result, nil
	}

	if isResultSizeError(err) {
		return zero, err
	}

	var mapErr mappingError
	if errors.As(err, &mapErr) {
		return zero, t.fail(op, query, PhaseMap, mapErr.cause)
	}

	return zero, t.fail(op, query, PhaseExecute, err)
}

// fail logs the cause and wraps it in a [DataAccessError]
func (t *Template) fail(op, query string, phase Phase, cause error) error {
	err := newDataAccessError(op, query, phase, cause)

	fields := logrus.Fields{
		"op":    err.Op,
		"phase": err.Phase,
		"query": err.Query,
	}
	if err.Code != "" {
		fields["code"] = err.Code
	}

	t.logger.WithError(err.Err).WithFields(fields).Error("statement failed")

	return err
}

// limitedRows stops the cursor after limit rows
type limitedRows struct {
	scan.Rows
	limit int
	seen  int
}

func (l *limitedRows) Next() bool {
	if l.seen >= l.limit {
		return false
	}

	if !l.Rows.Next() {
		return false
	}

	l.seen++
	return true
}
