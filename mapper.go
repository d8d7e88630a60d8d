package sqlexec

import (
	"fmt"

	"github.com/aarondl/opt/null"
)

// Row is the cursor positioned on the current result row
type Row interface {
	Columns() ([]string, error)
	Scan(dest ...any) error
}

// RowMapper converts the current row into a value of type T.
// It is called once per row for [Query] and at most once for [QueryForObject].
type RowMapper[T any] func(Row) (T, error)

// SingleColumn returns a mapper for queries that return only one column.
// The column is scanned directly into a T, so T must be a type the driver
// can scan into.
func SingleColumn[T any]() RowMapper[T] {
	return func(r Row) (T, error) {
		var t T

		cols, err := r.Columns()
		if err != nil {
			return t, err
		}

		if len(cols) != 1 {
			return t, fmt.Errorf("expected 1 column but got %d columns", len(cols))
		}

		err = r.Scan(&t)
		return t, err
	}
}

// NullColumn is like [SingleColumn] but maps SQL NULL to a null [null.Val]
func NullColumn[T any]() RowMapper[null.Val[T]] {
	return SingleColumn[null.Val[T]]()
}

// MapRow maps each row into a map of column name to value.
// []byte values are converted to string.
func MapRow(r Row) (map[string]any, error) {
	cols, err := r.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}

	if err := r.Scan(pointers...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(cols))
	for i, name := range cols {
		if b, ok := values[i].([]byte); ok {
			row[name] = string(b)
			continue
		}
		row[name] = values[i]
	}

	return row, nil
}
