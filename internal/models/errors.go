package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the stable wire code returned to API callers.
type ErrorCode string

const (
	ErrCodeInvalidURL           ErrorCode = "INVALID_URL"
	ErrCodeInvalidAlias         ErrorCode = "INVALID_ALIAS"
	ErrCodeAliasTaken           ErrorCode = "ALIAS_TAKEN"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeGone                 ErrorCode = "GONE"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeInsufficientTier     ErrorCode = "INSUFFICIENT_TIER"
	ErrCodeGenerationFailed     ErrorCode = "GENERATION_FAILED"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// AliasReason further qualifies an InvalidAlias error.
type AliasReason string

const (
	AliasReasonBadChars AliasReason = "bad_chars"
	AliasReasonTooShort AliasReason = "too_short"
	AliasReasonTooLong  AliasReason = "too_long"
	AliasReasonReserved AliasReason = "reserved"
)

// AppError is the single structured error type surfaced across the service,
// handler, and wire layers.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func NewAppErrorWithCause(code ErrorCode, message string, httpStatus int, cause error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: cause}
}

func NewAppErrorWithDetails(code ErrorCode, message, details string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, Details: details, HTTPStatus: httpStatus}
}

// Error kind constructors, one per §7 of the error-handling design.

func ErrInvalidURL(message string) *AppError {
	return NewAppError(ErrCodeInvalidURL, message, http.StatusBadRequest)
}

func ErrInvalidAlias(reason AliasReason) *AppError {
	return NewAppErrorWithDetails(ErrCodeInvalidAlias, "custom alias is invalid", string(reason), http.StatusBadRequest)
}

func ErrAliasTaken(alias string) *AppError {
	return NewAppErrorWithDetails(ErrCodeAliasTaken, "alias is already in use", alias, http.StatusConflict)
}

func ErrNotFound(message string) *AppError {
	return NewAppError(ErrCodeNotFound, message, http.StatusNotFound)
}

func ErrExpired(message string) *AppError {
	return NewAppError(ErrCodeGone, message, http.StatusGone)
}

func ErrUnauthenticated(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func ErrForbidden(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func ErrInsufficientTier(required UserTier) *AppError {
	return NewAppErrorWithDetails(ErrCodeInsufficientTier, "tier does not permit this operation", string(required), http.StatusForbidden)
}

func ErrGenerationExhausted() *AppError {
	return NewAppError(ErrCodeGenerationFailed, "failed to allocate a unique short code", http.StatusServiceUnavailable)
}

func ErrRateLimitExceeded(message string) *AppError {
	return NewAppError(ErrCodeRateLimitExceeded, message, http.StatusTooManyRequests)
}

func ErrInternal(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func ErrInternalWithCause(message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrCodeInternal, message, http.StatusInternalServerError, cause)
}

// Sentinel errors returned by the repository and cache layers; the service
// layer translates these into AppErrors, never leaking them to handlers.
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrRecordNotFound = errors.New("record not found")
	ErrCacheMiss    = errors.New("cache miss")
)

// Specific domain AppErrors used directly by handlers and tests.
var (
	ErrMappingNotFound = ErrNotFound("short code not found")
	ErrMappingExpired  = ErrExpired("short url has expired")
)
