package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ValidationFailed    ErrorCode = "validation_failed"
	TransactionNotFound ErrorCode = "transaction_not_found"
	InvalidState        ErrorCode = "invalid_state"
	DuplicateReference  ErrorCode = "duplicate_reference"
	PublishFailed       ErrorCode = "publish_failed"
	Unauthorized        ErrorCode = "unauthorized"
	InvalidInput        ErrorCode = "invalid_input"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// HTTPStatus maps an error code to the response status the handlers should use.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ValidationFailed, InvalidInput:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case TransactionNotFound:
		return http.StatusNotFound
	case InvalidState, DuplicateReference:
		return http.StatusConflict
	case PublishFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrTransactionNotFound = NewAppError(TransactionNotFound, "transaction not found")
	ErrDuplicateReference  = NewAppError(DuplicateReference, "transaction reference already exists")
	ErrNotPending          = NewAppError(InvalidState, "only pending transactions can be cancelled")
	ErrNotCompleted        = NewAppError(InvalidState, "only completed transactions can be reversed")
)
