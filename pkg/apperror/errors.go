package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is, or wraps, an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Error codes returned by the gateway.
const (
	CodeZeroAddress        = "CFG_001"
	CodeUnauthorized       = "AUTH_002"
	CodeContractDisabled   = "PAY_001"
	CodeBadSignature       = "PAY_002"
	CodeDelegationDisabled = "PAY_003"
	CodeTransferFailure    = "PAY_004"
	CodeTransferPending    = "PAY_005"
)

// ---- Gateway configuration (CFG) ----

func ErrZeroAddress() *AppError {
	return New(CodeZeroAddress, "Zero address is not allowed", http.StatusBadRequest)
}

// ---- Payments (PAY) ----

func ErrContractDisabled() *AppError {
	return New(CodeContractDisabled, "Gateway is disabled", http.StatusForbidden)
}

func ErrBadSignature() *AppError {
	return New(CodeBadSignature, "Bad order signature", http.StatusForbidden)
}

// ErrBadSignatureCause keeps the recovery failure for logs without exposing it.
func ErrBadSignatureCause(err error) *AppError {
	return Wrap(CodeBadSignature, "Bad order signature", http.StatusForbidden, err)
}

func ErrDelegationDisabled() *AppError {
	return New(CodeDelegationDisabled, "Delegated payment is disabled", http.StatusForbidden)
}

func ErrTransferFailure(err error) *AppError {
	return Wrap(CodeTransferFailure, "Token transfer failed", http.StatusPaymentRequired, err)
}

// ErrTransferPending means the transfer was broadcast but its outcome is not
// known yet. It must not be treated as a failure; ref identifies the transaction.
func ErrTransferPending(ref string, err error) *AppError {
	return Wrap(CodeTransferPending, "Token transfer pending, tx "+ref, http.StatusAccepted, err)
}

// ---- Security & Authentication (SEC) ----

func ErrMissingCredentials() *AppError {
	return New("SEC_001", "Missing caller credentials", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid request signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrUnauthorized() *AppError {
	return New(CodeUnauthorized, "Caller is not authorized", http.StatusForbidden)
}

// ---- Ledger (LED) ----

func ErrLedgerUnavailable() *AppError {
	return New("LED_001", "Token ledger is not enabled", http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a REQ_001 validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}
