// Package util provides the shared logger and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the engine's failure vocabulary. Callers match with
// errors.Is; the typed wrappers below carry context and unwrap to these.
var (
	ErrNotFound            = errors.New("entity not found")
	ErrConflict            = errors.New("target already exists")
	ErrInvalidContext      = errors.New("invalid context for device type")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidXPath        = errors.New("invalid xpath")
	ErrVersionIncompatible = errors.New("version incompatible")
	ErrValidationFailed    = errors.New("validation failed")
	ErrParse               = errors.New("configuration parse error")
	ErrInternal            = errors.New("internal error")
)

// NotFoundError reports an entity or container path that does not resolve.
type NotFoundError struct {
	Kind    string
	Name    string
	Context string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s container not found in %s", e.Kind, e.Context)
	}
	return fmt.Sprintf("%s '%s' not found in %s", e.Kind, e.Name, e.Context)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a not-found error.
func NewNotFoundError(kind, name, context string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name, Context: context}
}

// ConflictError reports a target slot that is already occupied and a
// strategy that declined to resolve it.
type ConflictError struct {
	Kind     string
	Name     string
	Strategy string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s '%s' already exists in target (strategy %s declined)", e.Kind, e.Name, e.Strategy)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ContextError reports an illegal device-type/context combination.
type ContextError struct {
	DeviceType string
	Context    string
	Detail     string
}

func (e *ContextError) Error() string {
	msg := fmt.Sprintf("context %s is not valid for device type %s", e.Context, e.DeviceType)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ContextError) Unwrap() error { return ErrInvalidContext }

// XPathError reports a malformed xpath, either produced by the resolver or
// passed in by a caller.
type XPathError struct {
	XPath  string
	Reason string
}

func (e *XPathError) Error() string {
	return fmt.Sprintf("invalid xpath %q: %s", e.XPath, e.Reason)
}

func (e *XPathError) Unwrap() error { return ErrInvalidXPath }

// VersionError reports a sub-element required by the target version that
// is missing from the source element.
type VersionError struct {
	Kind      string
	Name      string
	Attribute string
	Target    string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s '%s': required attribute '%s' missing for PAN-OS %s",
		e.Kind, e.Name, e.Attribute, e.Target)
}

func (e *VersionError) Unwrap() error { return ErrVersionIncompatible }

// ValidationError carries one or more validator messages.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// NewValidationError creates a validation error from messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder accumulates validation failures.
type ValidationBuilder struct {
	errors []string
}

// Add adds message when condition is false.
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds a message unconditionally.
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted message.
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors reports whether any failures were recorded.
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Messages returns the accumulated failure messages.
func (v *ValidationBuilder) Messages() []string {
	return v.errors
}

// Build returns the accumulated ValidationError, or nil when clean.
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
