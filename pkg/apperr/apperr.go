// Package apperr defines the error taxonomy shared by the form engine services.
// Stores return plain sentinels; services translate them into an *Error with a
// Kind so transports can respond without string matching.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindInvalidState   Kind = "INVALID_STATE"
	KindImmutableField Kind = "IMMUTABLE_FIELD"
	KindDependency     Kind = "DEPENDENCY"
	KindInternal       Kind = "INTERNAL"
)

// Error carries a Kind, a human readable message and, for validation failures,
// the offending field identifiers.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input.
func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// NotFound reports a missing entity.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// InvalidState reports an operation that is not legal for the current lifecycle state.
func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// ImmutableField reports an attempt to change a field fixed at creation.
func ImmutableField(field string) *Error {
	return &Error{
		Kind:    KindImmutableField,
		Message: fmt.Sprintf("%s cannot be changed after creation", field),
		Fields:  []string{field},
	}
}

// Dependency wraps a failed or timed out collaborator call.
func Dependency(op string, err error) *Error {
	return &Error{Kind: KindDependency, Message: op + " failed", Err: err}
}

// Internal wraps an unexpected failure such as a storage error.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: op + " failed", Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
