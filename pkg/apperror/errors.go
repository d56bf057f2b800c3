package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string            `json:"error_code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"` // Per-field validation failures
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"` // Wrapped internal error (not exposed to client)
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

// Is matches another *AppError by code, so errors.Is(err, apperror.ErrNotVerified()) works.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
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

// CodeOf returns the AppError code carried by err, or "" if err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error for malformed caller input.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ValidationFields returns a VAL_001 error carrying per-field messages.
func ValidationFields(message string, fields map[string]string) *AppError {
	e := Validation(message)
	e.Fields = fields
	return e
}

// ---- Lifecycle conflicts (STATE) ----

func ErrNotVerified() *AppError {
	return New("STATE_001", "Seller identity is not verified", http.StatusConflict)
}

func ErrCannotDeleteDefault() *AppError {
	return New("STATE_002", "Default payout method cannot be deleted", http.StatusConflict)
}

func ErrHasPendingWithdrawal() *AppError {
	return New("STATE_003", "Payout method is referenced by a pending withdrawal", http.StatusConflict)
}

func ErrSubmissionPending() *AppError {
	return New("STATE_004", "A KYC submission is already pending review", http.StatusConflict)
}

func ErrMethodNotUsable(reason string) *AppError {
	return New("STATE_005", reason, http.StatusConflict)
}

func ErrWithdrawalNotAwaiting(reason string) *AppError {
	return New("STATE_006", reason, http.StatusConflict)
}

func ErrDuplicatePayoutMethod() *AppError {
	return New("STATE_007", "Payout method already registered", http.StatusConflict)
}

// ---- Security gate (SEC) ----

func ErrChallengeRequired() *AppError {
	return New("SEC_001", "Verification challenge required", http.StatusUnauthorized)
}

func ErrInvalidOrExpiredChallenge() *AppError {
	return New("SEC_002", "Invalid or expired verification code", http.StatusForbidden)
}

func ErrInvalidCaller() *AppError {
	return New("SEC_003", "Invalid caller credentials", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_004", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_005", "Nonce has already been used", http.StatusForbidden)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Idempotency (IDEM) ----

func ErrIdempotencyConflict() *AppError {
	return New("IDEM_001", "Request id was already used with different parameters", http.StatusConflict)
}

// ---- Withdrawal limits (WDR) ----

func ErrInsufficientBalance() *AppError {
	return New("WDR_001", "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrBelowMinimum(min string) *AppError {
	return New("WDR_002", fmt.Sprintf("Minimum withdrawal amount is %s", min), http.StatusUnprocessableEntity)
}

func ErrAboveMaximum(max string) *AppError {
	return New("WDR_003", fmt.Sprintf("Maximum withdrawal amount is %s per transaction", max), http.StatusUnprocessableEntity)
}

func ErrMonthlyCapExceeded(cap string) *AppError {
	return New("WDR_004", fmt.Sprintf("Monthly withdrawal limit of %s exceeded", cap), http.StatusUnprocessableEntity)
}

// ---- Lookup (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Documents (DOC) ----

func ErrDocumentTooLarge(limit string) *AppError {
	return New("DOC_001", fmt.Sprintf("Document exceeds the %s limit", limit), http.StatusRequestEntityTooLarge)
}

func ErrDocumentType(contentType string) *AppError {
	return New("DOC_002", fmt.Sprintf("Document type %q is not accepted", contentType), http.StatusUnsupportedMediaType)
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
	return Wrap("SYS_002", "Encryption service failure", http.StatusInternalServerError, err)
}

func ErrUpstreamUnavailable(err error) *AppError {
	return Wrap("SYS_003", "Upstream service unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
