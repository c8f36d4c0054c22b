// internal/app/system/apperr/apperr.go

// Package apperr defines the error taxonomy shared by managers, stores and
// HTTP handlers. Handlers map these to a status code or a redirect; stores
// translate driver errors into them so callers never see driver types.
package apperr

import (
	"errors"
	"fmt"
)

// AuthenticationError covers bad credentials, expired sessions, failed
// bot challenges, CSRF failures and channel-security violations. It is
// always surfaced as a 401 or a redirect, never silently retried.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// Authentication builds an AuthenticationError with the given reason.
func Authentication(reason string) error {
	return &AuthenticationError{Reason: reason}
}

// AuthorizationError covers role or ownership mismatches. Surfaced as 403.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}

// Authorization builds an AuthorizationError with the given reason.
func Authorization(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// FieldError describes a single invalid field so front ends can render
// targeted messages next to the offending input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError carries one or more field-level descriptors. Recoverable
// by resubmission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
}

// Validation builds a ValidationError for a single field.
func Validation(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// ValidationFields builds a ValidationError from several descriptors.
func ValidationFields(fields ...FieldError) error {
	return &ValidationError{Fields: fields}
}

// CodeConfirmationMismatch marks a new-password confirmation that does not
// match. It rides on a ValidationError so the field descriptor survives.
const CodeConfirmationMismatch = "confirmation_mismatch"

// ConfirmationMismatch builds the password-confirmation validation error.
func ConfirmationMismatch() error {
	return &ValidationError{Fields: []FieldError{{
		Field:   "newPasswordConfirm",
		Message: "new password has not been confirmed",
		Code:    CodeConfirmationMismatch,
	}}}
}

// ConflictError marks duplicate usernames, organization names or taken
// slugs. Code is machine-readable and distinct from generic validation.
type ConflictError struct {
	Field string
	Code  string
}

func (e *ConflictError) Error() string {
	return "conflict on " + e.Field + ": " + e.Code
}

// Conflict codes.
const (
	CodeValueAlreadyInUse = "value_already_in_use"
	CodeDuplicateUsername = "duplicate_username"
	CodeDuplicateName     = "duplicate_name"
)

// Conflict builds a ConflictError for the given field and code.
func Conflict(field, code string) error {
	return &ConflictError{Field: field, Code: code}
}

// ErrSelfOperation is returned when a user targets their own account with
// a destructive operation (delete, disable). Never overridable, even for
// admins.
var ErrSelfOperation = errors.New("operation cannot target your own account")

// ErrNotFound is the store-level sentinel for a missing record.
var ErrNotFound = errors.New("not found")

// IsAuthentication reports whether err is authentication-class.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsAuthorization reports whether err is authorization-class.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// AsValidation unwraps err into a ValidationError, if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsConflict unwraps err into a ConflictError, if it is one.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := errors.As(err, &ce)
	return ce, ok
}
