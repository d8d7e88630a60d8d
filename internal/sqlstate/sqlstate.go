// Package sqlstate extracts the database error code from the errors
// returned by the drivers sqlexec is commonly used with.
package sqlstate

import (
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// Of returns the code carried by err, if any error in its chain came from
// a known driver.
//
//   - PostgreSQL (lib/pq and pgx): the 5 character SQLSTATE
//   - MySQL: the server error number
//   - SQLite: the extended result code
func Of(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number)), true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return strconv.Itoa(liteErr.Code()), true
	}

	return "", false
}
