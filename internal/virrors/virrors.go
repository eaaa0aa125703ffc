// Package virrors provides a small error type carrying a user-facing message,
// a one-line help hint, and an optional wrapped cause.
package virrors

import "fmt"

// Error is a user-visible failure: a message plus a help hint. It chains
// through Unwrap so errors.Is/errors.As keep working on the wrapped cause.
type Error struct {
	Msg  string
	Help string
	Err  error
}

// New builds an Error with no wrapped cause.
func New(msg, help string) *Error {
	return &Error{Msg: msg, Help: help}
}

// Wrap builds an Error around an existing cause.
func Wrap(err error, msg, help string) *Error {
	return &Error{Msg: msg, Help: help, Err: err}
}

func (e *Error) Error() string {
	if e.Help == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (%s)", e.Msg, e.Err, e.Help)
	}
	return fmt.Sprintf("%s (%s)", e.Msg, e.Help)
}

func (e *Error) Unwrap() error {
	return e.Err
}
