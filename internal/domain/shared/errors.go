package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so a
// specific error built with NewDomainError still matches its sentinel.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound              = "NOT_FOUND"
	CodeAlreadyExists         = "ALREADY_EXISTS"
	CodeValidation            = "VALIDATION_ERROR"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeInvalidState          = "INVALID_STATE"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeDuplicateBatchNumber  = "DUPLICATE_BATCH_NUMBER"
	CodeDuplicateEANInBatch   = "DUPLICATE_EAN_IN_BATCH"
	CodeAlreadyReturned       = "ALREADY_RETURNED"
	CodeNoApplicableBonusRule = "NO_APPLICABLE_BONUS_RULE"
	CodeCannotVoidPaidBonus   = "CANNOT_VOID_PAID_BONUS"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrValidation          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")

	ErrDuplicateBatchNumber  = NewDomainError(CodeDuplicateBatchNumber, "Batch number already exists")
	ErrDuplicateEANInBatch   = NewDomainError(CodeDuplicateEANInBatch, "Product with this EAN already exists in the batch")
	ErrAlreadyReturned       = NewDomainError(CodeAlreadyReturned, "Sale has already been returned")
	ErrNoApplicableBonusRule = NewDomainError(CodeNoApplicableBonusRule, "No active bonus rule covers the sale amount")
	ErrCannotVoidPaidBonus   = NewDomainError(CodeCannotVoidPaidBonus, "Bonus has already been paid and cannot be voided")
)

// NewValidationError creates a validation error with a specific message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// IsConflict reports whether err is one of the conflict kinds
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrDuplicateBatchNumber) ||
		errors.Is(err, ErrDuplicateEANInBatch) ||
		errors.Is(err, ErrAlreadyReturned)
}
