// Package errors provides structured, actionable error values for statesync.
//
// Hooks report programmer errors (a missing key, a nil fetch function) by
// panicking with an *Error built from a registered code. Each code maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A category used for grouping
//
// # Usage
//
//	panic(errors.New("H001").
//	    WithDetail(`cookie.UseState called with key ""`).
//	    WithSuggestion("Pass the cookie name as the second argument"))
//
// Callers that recover a hook panic can match on the code:
//
//	if errors.HasCode(err, "H001") { ... }
package errors
