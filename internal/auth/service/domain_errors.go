package service

import (
	"errors"
	"net/http"

	commonerrors "github.com/AlibekovAA/fincore/internal/common/errors"
)

// Every credential failure carries the same public message so callers cannot
// tell a missing account from a bad token.
const unauthorizedMessage = "unauthorized"

var (
	ErrUnauthenticated = commonerrors.NewDomainError(
		"UNAUTHENTICATED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		unauthorizedMessage,
	)

	ErrInvalidToken = commonerrors.NewDomainError(
		"INVALID_TOKEN",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		unauthorizedMessage,
	)

	ErrInvalidRefreshToken = commonerrors.NewDomainError(
		"INVALID_REFRESH_TOKEN",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		unauthorizedMessage,
	)

	ErrRefreshTokenNotFound = commonerrors.NewDomainError(
		"REFRESH_TOKEN_NOT_FOUND",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		unauthorizedMessage,
	)

	ErrAccountNotFound = commonerrors.NewDomainError(
		"ACCOUNT_NOT_FOUND",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		unauthorizedMessage,
	)

	// ErrAccountLookupNotFound answers staff lookups of an unknown account.
	ErrAccountLookupNotFound = commonerrors.NewDomainError(
		"ACCOUNT_NOT_FOUND",
		commonerrors.CategoryNotFound,
		http.StatusNotFound,
		"account not found",
	)

	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		unauthorizedMessage,
	)

	ErrInvalidOTP = commonerrors.NewDomainError(
		"INVALID_OTP",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"invalid or expired otp",
	)

	ErrForbidden = commonerrors.NewDomainError(
		"FORBIDDEN",
		commonerrors.CategoryAuth,
		http.StatusForbidden,
		"forbidden",
	)

	ErrEmailTaken = commonerrors.NewDomainError(
		"EMAIL_TAKEN",
		commonerrors.CategoryConflict,
		http.StatusConflict,
		"email already registered",
	)

	ErrTelephoneTaken = commonerrors.NewDomainError(
		"TELEPHONE_TAKEN",
		commonerrors.CategoryConflict,
		http.StatusConflict,
		"telephone number already registered",
	)

	ErrValidation = commonerrors.NewDomainError(
		"VALIDATION_FAILED",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"validation failed",
	)

	ErrValidationName = commonerrors.NewDomainError(
		"VALIDATION_NAME",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"first and last name are required",
	)

	ErrValidationEmail = commonerrors.NewDomainError(
		"VALIDATION_EMAIL",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"invalid email address",
	)

	ErrValidationTelephone = commonerrors.NewDomainError(
		"VALIDATION_TELEPHONE",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"invalid telephone number",
	)

	ErrValidationDOB = commonerrors.NewDomainError(
		"VALIDATION_DOB",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"date of birth must be YYYY-MM-DD",
	)

	ErrValidationOTPFormat = commonerrors.NewDomainError(
		"VALIDATION_OTP_FORMAT",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"otp must be 6 digits",
	)

	ErrPersistence = commonerrors.NewDomainError(
		"PERSISTENCE_FAILURE",
		commonerrors.CategoryInternal,
		http.StatusInternalServerError,
		"internal server error",
	)

	ErrServiceUnavailable = commonerrors.NewDomainError(
		"SERVICE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"service temporarily unavailable",
	)

	ErrSessionConflict = commonerrors.NewDomainError(
		"SESSION_CONFLICT",
		commonerrors.CategoryInternal,
		http.StatusInternalServerError,
		"internal server error",
	)
)

// IsAuthFailure reports whether err should be answered with a uniform 401.
// Persistence and availability failures are never auth failures.
func IsAuthFailure(err error) bool {
	de, ok := commonerrors.AsDomainError(err)
	if !ok {
		return false
	}
	return de.Category() == commonerrors.CategoryUnauthorized && !errors.Is(err, ErrPersistence)
}
