package pipeq

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	ErrIO              ErrorKind = "io"
	ErrSQL             ErrorKind = "sql"
	ErrSchema          ErrorKind = "schema"
	ErrUnknownField    ErrorKind = "unknown_field"
	ErrInvalidOperator ErrorKind = "invalid_operator"
	ErrCoercion        ErrorKind = "coercion_failure"
	ErrTypeMismatch    ErrorKind = "type_mismatch"
	ErrValidation      ErrorKind = "validation"
	ErrNotFound        ErrorKind = "not_found"
	ErrBackend         ErrorKind = "backend"
	ErrFeature         ErrorKind = "feature_missing"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func SchemaError(msg string) *Error {
	return &Error{Kind: ErrSchema, Message: msg}
}

func UnknownFieldError(field string) *Error {
	return &Error{Kind: ErrUnknownField, Message: "unknown field", Field: field}
}

func InvalidOperatorError(field, token string) *Error {
	return &Error{Kind: ErrInvalidOperator, Message: fmt.Sprintf("invalid operator %q", token), Field: field}
}

func CoercionError(field, raw, expected string) *Error {
	return &Error{Kind: ErrCoercion, Message: fmt.Sprintf("cannot coerce %q to %s", raw, expected), Field: field}
}

func TypeMismatch(field, msg string) *Error {
	return &Error{Kind: ErrTypeMismatch, Field: field, Message: msg}
}

func NotFoundError(collection, id string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("document not found: %s/%s", collection, id)}
}

// ValidationError aggregates every problem found in one strict compile.
type ValidationError struct {
	Issues []*Error
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return string(ErrValidation)
	}
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Error()
	}
	noun := "issues"
	if len(e.Issues) == 1 {
		noun = "issue"
	}
	return fmt.Sprintf("%s: %d %s: %s", ErrValidation, len(e.Issues), noun, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Issues))
	for i, is := range e.Issues {
		out[i] = is
	}
	return out
}

// IsKind reports whether err is, or wraps, an error of the given kind. A
// ValidationError is of kind validation and of the kind of each issue.
func IsKind(err error, kind ErrorKind) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		if kind == ErrValidation {
			return true
		}
		for _, is := range ve.Issues {
			if is.Kind == kind {
				return true
			}
		}
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
