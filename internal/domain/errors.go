package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrDependency   = errors.New("dependency unavailable")
)

// ReasonError is a stable, user-visible failure reason that belongs to one of the kinds above.
type ReasonError struct {
	Code    string
	Message string
	kind    error
}

func (e *ReasonError) Error() string { return e.Message }

func (e *ReasonError) Unwrap() error { return e.kind }

func reason(code, msg string, kind error) *ReasonError {
	return &ReasonError{Code: code, Message: msg, kind: kind}
}

// Validation.
var (
	ErrMissingField  = reason("missing_field", "missing required field", ErrBadRequest)
	ErrInvalidFormat = reason("invalid_format", "invalid format", ErrBadRequest)
)

// Conflicts.
var (
	ErrEmailTaken        = reason("email_taken", "email already in use", ErrConflict)
	ErrUsernameTaken     = reason("username_taken", "username already in use", ErrConflict)
	ErrAlreadyRegistered = reason("already_registered", "email already registered", ErrConflict)
)

// OTP lifecycle. Reported as 400 like any other signup gate.
var (
	ErrOTPNotFound = reason("otp_not_found", "otp not found", ErrBadRequest)
	ErrOTPExpired  = reason("otp_expired", "otp has expired", ErrBadRequest)
	ErrOTPMismatch = reason("otp_mismatch", "invalid otp", ErrBadRequest)
)

// Authentication.
var (
	ErrInvalidCredentials   = reason("invalid_credentials", "invalid email or password", ErrUnauthorized)
	ErrIncorrectOldPassword = reason("incorrect_old_password", "incorrect old password", ErrUnauthorized)
	ErrTokenMissing         = reason("token_missing", "token is missing", ErrUnauthorized)
	ErrTokenExpired         = reason("token_expired", "token has expired", ErrUnauthorized)
	ErrTokenInvalid         = reason("token_invalid", "invalid token", ErrUnauthorized)
)

var (
	ErrUserNotFound   = reason("user_not_found", "user not found", ErrNotFound)
	ErrDeliveryFailed = reason("delivery_failed", "could not deliver otp", ErrDependency)
)

// Code returns the reason code carried by err, or "" when err has none.
func Code(err error) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
