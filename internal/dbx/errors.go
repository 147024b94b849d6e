package dbx

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vitaria/catalog/internal/common"
)

// PostgreSQL error codes the repositories care about.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

// WrapError maps driver errors onto the shared repository errors.
// Missing rows and malformed ids become common.ErrorNotFound; unique and
// foreign key violations become common.ErrorConflict. Anything else is
// wrapped as "db error".
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidTextRepr:
			return common.ErrorNotFound
		case pgUniqueViolation, pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", common.ErrorConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("db error: %w", err)
}

// Placeholders returns "$from, $from+1, ..." for n arguments.
func Placeholders(from, n int) string {
	var b strings.Builder
	for i := range n {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(from + i))
	}
	return b.String()
}

// Args converts a string slice into query arguments.
func Args(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
