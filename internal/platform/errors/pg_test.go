package errors

import (
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code, col string) error {
	return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, ColumnName: col})
}

func TestFromPostgres_Codes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state string
		want  ErrorCode
	}{
		{"23505", ErrorCodeDuplicateKey},
		{"23503", ErrorCodeInvalidArgument},
		{"23502", ErrorCodeValidation},
		{"23514", ErrorCodeValidation},
		{"22001", ErrorCodeInvalidArgument},
		{"22P02", ErrorCodeInvalidArgument},
		{"25006", ErrorCodeUnavailable},
		{"57P03", ErrorCodeUnavailable},
		{"40001", ErrorCodeDB},
		{"XX000", ErrorCodeDB},
	}
	for _, tc := range cases {
		if got := CodeOf(FromPostgres(pgErr(tc.state, ""), "members: insert")); got != tc.want {
			t.Fatalf("%s: code = %v, want %v", tc.state, got, tc.want)
		}
	}

	if FromPostgres(nil, "x") != nil {
		t.Fatalf("nil should pass through")
	}
	if got := CodeOf(FromPostgres(stderrs.New("conn reset"), "x")); got != ErrorCodeDB {
		t.Fatalf("non pg error code = %v", got)
	}
}

func TestFromPostgres_ColumnBecomesField(t *testing.T) {
	t.Parallel()

	err := FromPostgres(pgErr("23514", "id_number"), "members: insert")
	if e, _ := As(err); e.Field() != "id_number" {
		t.Fatalf("field = %q", e.Field())
	}
}

func TestStatePredicates(t *testing.T) {
	t.Parallel()

	if !IsDuplicateKey(pgErr("23505", "")) || IsDuplicateKey(pgErr("23503", "")) {
		t.Fatalf("IsDuplicateKey")
	}
	if !IsForeignKeyViolation(pgErr("23503", "")) {
		t.Fatalf("IsForeignKeyViolation")
	}
	if !IsMissingSavepoint(Wrap(pgErr("3B001", ""), ErrorCodeDB, "release")) {
		t.Fatalf("IsMissingSavepoint through wrap")
	}
	if IsMissingSavepoint(stderrs.New("3B001")) {
		t.Fatalf("text alone is not a savepoint error")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	for _, state := range []string{"40001", "40P01", "55P03"} {
		if !IsTransient(pgErr(state, "")) {
			t.Fatalf("%s should be transient", state)
		}
	}
	if IsTransient(pgErr("23505", "")) {
		t.Fatalf("unique violation is not transient")
	}
	if !IsTransient(stderrs.New("commit unexpectedly resulted in rollback")) {
		t.Fatalf("commit rollback text should be transient")
	}
	if IsTransient(nil) {
		t.Fatalf("nil")
	}
}
