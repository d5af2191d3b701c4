package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"stockkeeper/internal/core/apperror"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"serialization", &pgconn.PgError{Code: pgSerializationFailure}, apperror.CodeConcurrentModification},
		{"deadlock", &pgconn.PgError{Code: pgDeadlockDetected}, apperror.CodeConcurrentModification},
		{"lock timeout", fmt.Errorf("lock: %w", &pgconn.PgError{Code: pgLockNotAvailable}), apperror.CodeConcurrentModification},
		{"opname consumed twice", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: ConstraintOpnameAdjustment}, apperror.CodeOpnameAlreadyAdjusted},
		{"opname still referenced", &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: ConstraintOpnameAdjustmentFK}, apperror.CodeOpnameAlreadyAdjusted},
		{"duplicate code", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: ConstraintProductCode, TableName: "products"}, apperror.CodeDuplicate},
		{"other unique", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "x"}, apperror.CodeConflict},
		{"other fk", &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "y"}, apperror.CodeBusinessRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			assert.True(t, apperror.Is(got, tt.code), "got %v", got)
			var pgErr *pgconn.PgError
			assert.True(t, errors.As(got, &pgErr), "cause is kept")
		})
	}
}

func TestTranslateError_PassThrough(t *testing.T) {
	assert.NoError(t, translateError(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, translateError(plain))

	appErr := apperror.NewOpnameLocked("x", "RECONCILED")
	assert.Same(t, appErr, translateError(appErr))

	other := &pgconn.PgError{Code: "22003"}
	assert.Same(t, other, translateError(other))
}
