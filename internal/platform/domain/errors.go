package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so transports can map it without string matching.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindValidation        ErrorKind = "validation"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindConflict          ErrorKind = "conflict"
	KindDriverUnavailable ErrorKind = "driver_unavailable"
	KindPolicyViolation   ErrorKind = "policy_violation"
	KindForbidden         ErrorKind = "forbidden"
)

// Reason codes shared across packages. Policy-specific codes live next to the policy engine.
const (
	CodeNotFound          = "not_found"
	CodeValidation        = "validation_failed"
	CodeInvalidTransition = "invalid_transition"
	CodeStaleState        = "stale_state"
	CodeDriverUnavailable = "driver_unavailable"
	CodeForbidden         = "forbidden"
)

// DomainError is a user-facing decision carrying a machine-readable reason code.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]any
}

// WithDetail attaches a structured value the caller can render, e.g. a remaining wait.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another DomainError with the same kind and code, so sentinel values work with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewValidationError reports malformed input.
func NewValidationError(msg string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: CodeValidation, Message: msg}
}

// NewInvalidStateError reports a transition outside the allowed-successor set.
func NewInvalidStateError(from, to string) *DomainError {
	return &DomainError{
		Kind:    KindInvalidTransition,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// NewConflictError reports a stale read; the caller may refetch and retry once.
func NewConflictError(msg string) *DomainError {
	return &DomainError{Kind: KindConflict, Code: CodeStaleState, Message: msg}
}

// NewDriverUnavailableError reports a failed claim.
func NewDriverUnavailableError(driverID string) *DomainError {
	return &DomainError{
		Kind:    KindDriverUnavailable,
		Code:    CodeDriverUnavailable,
		Message: fmt.Sprintf("driver %s is not available", driverID),
	}
}

// NewPolicyViolationError reports a request refused by a configured policy rule.
func NewPolicyViolationError(code, msg string) *DomainError {
	return &DomainError{Kind: KindPolicyViolation, Code: code, Message: msg}
}

// NewForbiddenError reports an actor acting outside its permissions.
func NewForbiddenError(msg string) *DomainError {
	return &DomainError{Kind: KindForbidden, Code: CodeForbidden, Message: msg}
}

// KindOf returns the kind of err if it wraps a DomainError.
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind reports whether err wraps a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// CodeOf returns the reason code of a wrapped DomainError, or "" when err is not one.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
