package sqlexec

import (
	"errors"
	"fmt"

	"github.com/stephenafamo/sqlexec/internal/sqlstate"
)

var (
	// ErrNoDataFound is returned by the QueryForObject functions when the
	// statement produced no rows
	ErrNoDataFound = errors.New("no data found")

	// ErrTooManyResults is returned by the QueryForObject functions when the
	// statement produced more than one row
	ErrTooManyResults = errors.New("too many results")

	// ErrEmptyQuery is the cause of the error returned for an empty or
	// whitespace-only SQL string. No connection is acquired for it.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrNilMapper is the cause of the error returned when a query is
	// called without a row mapper
	ErrNilMapper = errors.New("row mapper must not be nil")
)

// Phase is the step of a statement invocation during which an error occurred
type Phase string

const (
	PhaseConnect Phase = "connect"
	PhasePrepare Phase = "prepare"
	PhaseExecute Phase = "execute"
	PhaseMap     Phase = "map"
	PhaseRelease Phase = "release"
)

// DataAccessError is the single error kind returned for any failure while
// acquiring a connection, preparing, executing, mapping or releasing.
// The original cause is available with [errors.Unwrap]
type DataAccessError struct {
	Op    string
	Query string
	Phase Phase
	// Code is the error code reported by the database, if the cause came
	// from a known driver. SQLSTATE for PostgreSQL, the error number for
	// MySQL and the result code for SQLite.
	Code string
	Err  error
}

func (e *DataAccessError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sqlexec: %s failed during %s [%s]: %v", e.Op, e.Phase, e.Code, e.Err)
	}
	return fmt.Sprintf("sqlexec: %s failed during %s: %v", e.Op, e.Phase, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

func newDataAccessError(op, query string, phase Phase, err error) *DataAccessError {
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return dae
	}

	code, _ := sqlstate.Of(err)
	return &DataAccessError{
		Op:    op,
		Query: query,
		Phase: phase,
		Code:  code,
		Err:   err,
	}
}

// mappingError marks an error returned by a row mapper so that it is
// reported with [PhaseMap] instead of [PhaseExecute]
type mappingError struct {
	cause error
}

func (m mappingError) Error() string {
	return m.cause.Error()
}

func (m mappingError) Unwrap() error {
	return m.cause
}

func resultSizeError(sentinel error, query string) error {
	return fmt.Errorf("%w: %s", sentinel, query)
}

func isResultSizeError(err error) bool {
	return errors.Is(err, ErrNoDataFound) || errors.Is(err, ErrTooManyResults)
}
