package helper

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
)

// MapPGError turns a gorm/pgx error into an HTTP status and message.
// Constraint violations are the caller's fault and come out as 400.
func MapPGError(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, "not found"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return http.StatusBadRequest, "already exists"
		case pgForeignKeyViolation:
			return http.StatusBadRequest, "referenced record does not exist"
		case pgNotNullViolation:
			return http.StatusBadRequest, pgErr.ColumnName + " is required"
		default:
			return http.StatusInternalServerError, pgErr.Message
		}
	}
	return http.StatusInternalServerError, err.Error()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
