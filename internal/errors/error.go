package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryUsage   Category = "usage"
	CategoryStorage Category = "storage"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
)

// Error is a structured error with a code, explanation and suggestion.
type Error struct {
	// Code is a unique error identifier (e.g., "H001").
	Code string

	// Category is the error type (usage, storage, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted explanation to the error.
func (e *Error) WithDetailf(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// Format renders the error for terminal output.
//
//	ERROR H001: Key is required
//
//	  cookie.UseState called with key ""
//
//	  Hint: Pass the cookie name as the second argument
func (e *Error) Format() string {
	var b strings.Builder
	b.WriteString("ERROR ")
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	b.WriteString("\n")
	if e.Detail != "" {
		b.WriteString("\n  ")
		b.WriteString(e.Detail)
		b.WriteString("\n")
	}
	if e.Wrapped != nil {
		b.WriteString("\n  Cause: ")
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n")
	}
	if e.Suggestion != "" {
		b.WriteString("\n  Hint: ")
		b.WriteString(e.Suggestion)
		b.WriteString("\n")
	}
	return b.String()
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an Error.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err, or any error it wraps, is an *Error with the given code.
// Panic values recovered from hooks can be passed directly.
func HasCode(err any, code string) bool {
	asErr, ok := err.(error)
	if !ok {
		return false
	}
	var e *Error
	if !stderrors.As(asErr, &e) {
		return false
	}
	return e.Code == code
}
