package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"stockkeeper/internal/core/apperror"
)

// SQLSTATE codes mapped to domain errors.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Constraint names from migrations.
const (
	ConstraintOpnameAdjustment   = "uq_management_stocks_linked_opname"
	ConstraintOpnameAdjustmentFK = "fk_management_stocks_linked_opname"
	ConstraintProductCode        = "uq_products_code"
	ConstraintOpnameCode         = "uq_stock_opnames_code"
	ConstraintAdjustmentCode     = "uq_management_stocks_code"
)

// translateError maps PostgreSQL errors to AppErrors. Errors that already
// carry an AppError, and non-PostgreSQL errors, are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return apperror.NewConcurrentModification(pgErr.TableName, nil).WithCause(err)
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case ConstraintOpnameAdjustment:
			return apperror.NewOpnameAlreadyAdjusted(nil).WithCause(err)
		case ConstraintProductCode, ConstraintOpnameCode, ConstraintAdjustmentCode:
			return apperror.NewDuplicate(pgErr.TableName, "code", pgErr.Detail).WithCause(err)
		}
		return apperror.NewConflict("duplicate entry").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgForeignKeyViolation:
		if pgErr.ConstraintName == ConstraintOpnameAdjustmentFK {
			return apperror.NewOpnameAlreadyAdjusted(nil).WithCause(err)
		}
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "referenced record does not exist or is still referenced").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	}
	return err
}

// TranslateError is the exported form of translateError for repositories
// outside this package.
func TranslateError(err error) error {
	return translateError(err)
}
