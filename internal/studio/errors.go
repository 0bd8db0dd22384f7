package studio

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when a session may not touch a resource.
var ErrForbidden = errors.New("forbidden")

// ValidationError is bad or missing user input, detected before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid builds a ValidationError.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// NotFoundError reports a referenced document that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// Auth error codes.
const (
	AuthInvalidEmail   = "auth/invalid-email"
	AuthUserNotFound   = "auth/user-not-found"
	AuthWrongPassword  = "auth/wrong-password"
	AuthTooManyRequest = "auth/too-many-requests"
	AuthUserDisabled   = "auth/user-disabled"
	AuthEmailInUse     = "auth/email-already-in-use"
	AuthWeakPassword   = "auth/weak-password"
	AuthNoProfile      = "auth/no-profile"
	AuthUnknown        = "auth/unknown"
)

var authMessages = map[string]string{
	AuthInvalidEmail:   "The email address is not valid. Please check and try again.",
	AuthUserNotFound:   "No account found with this email",
	AuthWrongPassword:  "Incorrect password. Please try again.",
	AuthTooManyRequest: "Too many attempts. Please wait a bit and try again.",
	AuthUserDisabled:   "This account has been disabled. Contact support.",
	AuthEmailInUse:     "This email is already registered.",
	AuthWeakPassword:   "The password is too weak. Use at least 6 characters.",
	AuthNoProfile:      "No profile is linked to this account.",
	AuthUnknown:        "An error occurred. Please try again later.",
}

// AuthError is a backend auth failure mapped to a user-readable message.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError maps code to its message; unknown codes get the generic one.
func NewAuthError(code string, cause error) *AuthError {
	msg, ok := authMessages[code]
	if !ok {
		code = AuthUnknown
		msg = authMessages[AuthUnknown]
	}
	return &AuthError{Code: code, Message: msg, Err: cause}
}

// IOError is a storage or network failure. File is set for batch-scoped work.
type IOError struct {
	Op   string
	File string
	Err  error
}

func (e *IOError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IOFailure builds an IOError.
func IOFailure(op string, err error) error {
	return &IOError{Op: op, Err: err}
}
