package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrKeynotFound      = errors.New("key not found")

	// ErrMissingID is returned by Update and Remove when the record has no id value.
	ErrMissingID     = errors.New("id is not defined")
	ErrNotOpen       = errors.New("connection is not open")
	ErrUnsupported   = errors.New("operation not supported by the database")
	ErrUnknownDriver = errors.New("unknown driver")
)

const mysqlDuplicateEntry = 1062

func wrapSQLError(err error) error {
	if err == nil {
		return nil
	}

	if isDuplicateKeyError(err) {
		return fmt.Errorf("%w. %s", ErrKeyAlreadyExists, err.Error())
	}

	errMap := map[error]error{
		sql.ErrNoRows:   ErrKeynotFound,
		sql.ErrConnDone: ErrNotOpen,
	}

	for g, e := range errMap {
		if errors.Is(err, g) {
			err = fmt.Errorf("%w. %s", e, err.Error())
		}
	}

	return err
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgerrcode.UniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
