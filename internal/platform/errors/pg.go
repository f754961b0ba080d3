package errors

import (
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE values with special handling
const (
	sqlUniqueViolation     = "23505"
	sqlForeignKeyViolation = "23503"
	sqlInvalidSavepoint    = "3B001"
)

// sqlState maps SQLSTATE values to codes; anything absent is ErrorCodeDB
var sqlState = map[string]ErrorCode{
	sqlUniqueViolation:     ErrorCodeDuplicateKey,
	sqlForeignKeyViolation: ErrorCodeInvalidArgument,
	"23502":                ErrorCodeValidation, // not null
	"23514":                ErrorCodeValidation, // check
	"22001":                ErrorCodeInvalidArgument,
	"22P02":                ErrorCodeInvalidArgument,
	"25006":                ErrorCodeUnavailable, // read only transaction
	"57P03":                ErrorCodeUnavailable, // cannot connect now
}

// transientStates are contention failures a retry usually clears
var transientStates = map[string]bool{
	"40001": true, // serialization failure
	"40P01": true, // deadlock
	"55P03": true, // lock not available
}

// transientText catches driver errors that arrive without a SQLSTATE
var transientText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
	"canceling statement due to statement timeout",
	"canceling statement due to lock timeout",
	"terminating connection due to administrator command",
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pg *pgconn.PgError
	ok := stderrs.As(err, &pg)
	return pg, ok
}

func isState(err error, state string) bool {
	pg, ok := pgError(err)
	return ok && pg.Code == state
}

// IsDuplicateKey reports a unique constraint violation
func IsDuplicateKey(err error) bool { return isState(err, sqlUniqueViolation) }

// IsForeignKeyViolation reports a foreign key violation
func IsForeignKeyViolation(err error) bool { return isState(err, sqlForeignKeyViolation) }

// IsMissingSavepoint reports a RELEASE or ROLLBACK TO naming a savepoint the
// server has already discarded, which follows an outer rollback
func IsMissingSavepoint(err error) bool { return isState(err, sqlInvalidSavepoint) }

// IsTransient reports contention that is worth retrying as is
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if pg, ok := pgError(err); ok {
		return transientStates[pg.Code]
	}
	s := strings.ToLower(Root(err).Error())
	for _, t := range transientText {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// FromPostgres wraps a driver error with msg and the code its SQLSTATE maps
// to. The offending column, when the server names one, becomes the field.
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	pg, ok := pgError(err)
	if !ok {
		return Wrap(err, ErrorCodeDB, msg)
	}
	code, known := sqlState[pg.Code]
	if !known {
		code = ErrorCodeDB
	}
	out := Wrap(err, code, msg)
	if col := strings.TrimSpace(pg.ColumnName); col != "" {
		out = WithField(out, col)
	}
	return out
}
