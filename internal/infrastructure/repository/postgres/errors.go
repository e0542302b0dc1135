package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

// mapError converts driver errors into domain error kinds.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrNotFound, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return domain.WrapError(domain.ErrConflict, op, err)
		case "23503": // foreign_key_violation
			return domain.WrapError(domain.ErrNotFound, op, err)
		case "23514": // check_violation
			return domain.WrapError(domain.ErrValidation, op, err)
		}
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
