package domain

import (
	stdErrors "errors"
	"fmt"
)

// Kind classifies domain failures so callers can tell them apart
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindValidation        Kind = "VALIDATION"
	KindConflict          Kind = "CONFLICT"
	KindPersistence       Kind = "PERSISTENCE"
)

// Error is the typed failure returned by aggregates, repositories and handlers
type Error struct {
	kind    Kind
	message string
	cause   error
}

func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...), cause: cause}
}

// NotFound reports a missing entity
func NotFound(entity, id string) *Error {
	return newError(KindNotFound, nil, "%s %s not found", entity, id)
}

// InvalidTransition reports a status change the state machine does not allow
func InvalidTransition(entity string, from, to Status) *Error {
	return newError(KindInvalidTransition, nil, "%s cannot transition from %s to %s", entity, from, to)
}

// Validation reports malformed input
func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, nil, format, args...)
}

// Conflict reports a write that clashes with existing data
func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, nil, format, args...)
}

// Persistence wraps a storage failure
func Persistence(err error, format string, args ...interface{}) *Error {
	return newError(KindPersistence, err, format, args...)
}

func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Message() string {
	return e.message
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the kind of the first *Error in the chain, or "" for foreign errors
func KindOf(err error) Kind {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed.kind
	}
	return ""
}

func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }
func IsValidation(err error) bool        { return KindOf(err) == KindValidation }
func IsConflict(err error) bool          { return KindOf(err) == KindConflict }
func IsPersistence(err error) bool       { return KindOf(err) == KindPersistence }
