// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal              = "INTERNAL_ERROR"
	CodeAllocationUnavailable = "ALLOCATION_UNAVAILABLE"

	// Validation errors (400)
	CodeValidation            = "VALIDATION_ERROR"
	CodeMalformedCode         = "MALFORMED_CODE"
	CodeUnsupportedEntityType = "UNSUPPORTED_ENTITY_TYPE"

	// Business rule violations (422)
	CodeBusinessRule              = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock         = "INSUFFICIENT_STOCK"
	CodeSequenceExhausted         = "SEQUENCE_EXHAUSTED"
	CodeDuplicateProductInOpname  = "DUPLICATE_PRODUCT_IN_OPNAME"
	CodeOpnameNotReconciled       = "OPNAME_NOT_RECONCILED"
	CodeOpnameAdjustmentImmutable = "OPNAME_ADJUSTMENT_IMMUTABLE"
	CodeOpnameLocked              = "OPNAME_LOCKED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict               = "CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeOpnameAlreadyAdjusted  = "OPNAME_ALREADY_ADJUSTED"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Generic factories ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// NewConcurrentModification creates a lock/version conflict error.
// The whole operation is safe to retry.
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified concurrently. Please retry.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different operation or body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// --- Code generation ---

// NewMalformedCode is returned when a string is not a valid document code.
func NewMalformedCode(code, reason string) *AppError {
	return &AppError{
		Code:       CodeMalformedCode,
		Message:    fmt.Sprintf("malformed code %q: %s", code, reason),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"code": code},
	}
}

// NewUnsupportedEntityType is returned for entity types outside the abbreviation table.
func NewUnsupportedEntityType(entityType string) *AppError {
	return &AppError{
		Code:       CodeUnsupportedEntityType,
		Message:    fmt.Sprintf("unsupported entity type %q", entityType),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"entity_type": entityType},
	}
}

// NewAllocationUnavailable wraps a persistence failure during code allocation.
// Callers must not fabricate a code in response.
func NewAllocationUnavailable(entityType string, err error) *AppError {
	return &AppError{
		Code:       CodeAllocationUnavailable,
		Message:    "Code allocation is temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"entity_type": entityType},
		Err:        err,
	}
}

// NewSequenceExhausted is returned when a bucket ran past 9999.
func NewSequenceExhausted(entityType string, year, month int) *AppError {
	return &AppError{
		Code:       CodeSequenceExhausted,
		Message:    "Sequence for this period is exhausted",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity_type": entityType, "year": year, "month": month},
	}
}

// --- Stock ---

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(productID any, requested, available int64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewDuplicateProductInOpname is returned when a count lists a product twice.
func NewDuplicateProductInOpname(productID any) *AppError {
	return &AppError{
		Code:       CodeDuplicateProductInOpname,
		Message:    "Product appears more than once in the stock count",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"product_id": productID},
	}
}

// NewOpnameNotReconciled is returned when adjusting a count that has no differences pending.
func NewOpnameNotReconciled(opnameID any, status string) *AppError {
	return &AppError{
		Code:       CodeOpnameNotReconciled,
		Message:    "Stock count is not reconciled",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"opname_id": opnameID, "status": status},
	}
}

// NewOpnameAlreadyAdjusted is returned when a count already produced its adjustment.
func NewOpnameAlreadyAdjusted(opnameID any) *AppError {
	return &AppError{
		Code:       CodeOpnameAlreadyAdjusted,
		Message:    "Stock count has already been adjusted",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"opname_id": opnameID},
	}
}

// NewOpnameAdjustmentImmutable is returned when deleting an adjustment derived from a count.
func NewOpnameAdjustmentImmutable(adjustmentID any) *AppError {
	return &AppError{
		Code:       CodeOpnameAdjustmentImmutable,
		Message:    "Adjustments derived from a stock count cannot be deleted",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"adjustment_id": adjustmentID},
	}
}

// NewOpnameLocked is returned for item edits on a finalized count.
func NewOpnameLocked(opnameID any, status string) *AppError {
	return &AppError{
		Code:       CodeOpnameLocked,
		Message:    "Stock count is finalized and can no longer be edited",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"opname_id": opnameID, "status": status},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return Is(err, CodeConcurrentModification)
}
