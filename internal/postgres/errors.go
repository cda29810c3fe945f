package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func IsUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Translate maps storage errors onto the taxonomy; what is left stays internal.
// entity names the row kind for not-found messages.
func Translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.NotFound("%s does not exist", entity)
	case errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation:
		return apperr.Wrap(apperr.CodeConflict, err, entity+" already exists")
	case errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation:
		return apperr.Wrap(apperr.CodeNotFound, err, "referenced record does not exist")
	case errors.As(err, &pgErr) && pgErr.Code == codeCheckViolation:
		return apperr.Wrap(apperr.CodeInvalidRequest, err, entity+" violates a constraint")
	}
	return err
}
