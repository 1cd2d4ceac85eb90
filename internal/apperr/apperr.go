package apperr

import (
	"errors"
	"fmt"
)

// Error codes returned by the core. They are transport-independent: the HTTP
// layer translates them to status codes in exactly one place, so any other
// binding (CLI, gRPC) can map them consistently.
const (
	CodeAuthFailure      = "AUTH_FAILURE"
	CodeTokenInvalid     = "TOKEN_INVALID"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeTokenMalformed   = "TOKEN_MALFORMED"
	CodeIdentityNotFound = "IDENTITY_NOT_FOUND"
	CodeInsufficientRole = "INSUFFICIENT_ROLE"
	CodeAccessDenied     = "ACCESS_DENIED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeValidation       = "VALIDATION_FAILURE"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// Error represents errors that can occur in the authorization, query and
// export core.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Constructors for the common kinds.

func AuthFailure() *Error {
	// Deliberately uniform: must not reveal whether the username exists.
	return New(CodeAuthFailure, "invalid credentials")
}

func TokenInvalid(err error) *Error {
	return Wrap(CodeTokenInvalid, "invalid token signature", err)
}

func TokenExpired(err error) *Error {
	return Wrap(CodeTokenExpired, "token expired", err)
}

func TokenMalformed(err error) *Error {
	return Wrap(CodeTokenMalformed, "malformed token", err)
}

func IdentityNotFound(userID uint) *Error {
	return New(CodeIdentityNotFound, fmt.Sprintf("user %d no longer exists", userID))
}

func InsufficientRole(message string) *Error {
	return New(CodeInsufficientRole, message)
}

func AccessDenied(message string) *Error {
	return New(CodeAccessDenied, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func StoreUnavailable(err error) *Error {
	return Wrap(CodeStoreUnavailable, "store unreachable", err)
}

func Internal(err error) *Error {
	return Wrap(CodeInternal, "internal error", err)
}

// CodeOf returns the code carried by err, or CodeInternal when err is not an
// *Error from this package.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}
