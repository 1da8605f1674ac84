package dto

import (
	"net/http"
	"strings"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// API error codes. Every code the API emits is ERR_ prefixed; domain codes
// are translated by NormalizeErrorCode.
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation       = "ERR_VALIDATION"
	ErrCodeValidationLength = "ERR_VALIDATION_LENGTH"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON      = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge  = "ERR_REQUEST_TOO_LARGE"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeRateLimited  = "ERR_RATE_LIMITED"

	ErrCodeNotFound             = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists        = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict  = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeDuplicateBatchNumber = "ERR_DUPLICATE_BATCH_NUMBER"
	ErrCodeDuplicateEANInBatch  = "ERR_DUPLICATE_EAN_IN_BATCH"
	ErrCodeAlreadyReturned      = "ERR_ALREADY_RETURNED"
	// ErrCodeDuplicateRequest means the Idempotency-Key was already used
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"

	ErrCodeInvalidState          = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock     = "ERR_INSUFFICIENT_STOCK"
	ErrCodeNoApplicableBonusRule = "ERR_NO_APPLICABLE_BONUS_RULE"
	ErrCodeCannotVoidPaidBonus   = "ERR_CANNOT_VOID_PAID_BONUS"
)

var statusByCode = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeValidationLength: http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeRateLimited:  http.StatusTooManyRequests,

	ErrCodeNotFound: http.StatusNotFound,

	ErrCodeAlreadyExists:        http.StatusConflict,
	ErrCodeConcurrencyConflict:  http.StatusConflict,
	ErrCodeDuplicateBatchNumber: http.StatusConflict,
	ErrCodeDuplicateEANInBatch:  http.StatusConflict,
	ErrCodeAlreadyReturned:      http.StatusConflict,
	ErrCodeDuplicateRequest:     http.StatusConflict,

	// rule violations on well-formed requests
	ErrCodeInvalidState:          http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:     http.StatusUnprocessableEntity,
	ErrCodeNoApplicableBonusRule: http.StatusUnprocessableEntity,
	ErrCodeCannotVoidPaidBonus:   http.StatusUnprocessableEntity,
}

var apiCodeByDomainCode = map[string]string{
	shared.CodeNotFound:              ErrCodeNotFound,
	shared.CodeAlreadyExists:         ErrCodeAlreadyExists,
	shared.CodeValidation:            ErrCodeValidation,
	shared.CodeConcurrencyConflict:   ErrCodeConcurrencyConflict,
	shared.CodeUnauthorized:          ErrCodeUnauthorized,
	shared.CodeForbidden:             ErrCodeForbidden,
	shared.CodeInvalidState:          ErrCodeInvalidState,
	shared.CodeInsufficientStock:     ErrCodeInsufficientStock,
	shared.CodeDuplicateBatchNumber:  ErrCodeDuplicateBatchNumber,
	shared.CodeDuplicateEANInBatch:   ErrCodeDuplicateEANInBatch,
	shared.CodeAlreadyReturned:       ErrCodeAlreadyReturned,
	shared.CodeNoApplicableBonusRule: ErrCodeNoApplicableBonusRule,
	shared.CodeCannotVoidPaidBonus:   ErrCodeCannotVoidPaidBonus,
	"INTERNAL_ERROR":                 ErrCodeInternal,
}

// GetHTTPStatus returns the status for an API or domain error code; unknown
// codes are a 500.
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[NormalizeErrorCode(code)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode turns a domain code such as INSUFFICIENT_STOCK into its
// API form. ERR_ codes pass through; unmapped codes gain the prefix.
func NormalizeErrorCode(code string) string {
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	if apiCode, ok := apiCodeByDomainCode[code]; ok {
		return apiCode
	}
	return "ERR_" + code
}
