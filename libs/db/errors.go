package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the services branch on.
const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
	codeForeignKey         = "23503"
	codeCheckViolation     = "23514"
)

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsConflict reports unique and exclusion constraint violations.
func IsConflict(err error) bool {
	code := sqlState(err)
	return code == codeUniqueViolation || code == codeExclusionViolation
}

func IsForeignKeyViolation(err error) bool {
	return sqlState(err) == codeForeignKey
}

func IsCheckViolation(err error) bool {
	return sqlState(err) == codeCheckViolation
}

func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
