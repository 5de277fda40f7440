// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to wrap errors without resorting
// to fmt.Errorf("%w", err).
package errors

import (
	stderr "errors"
	"fmt"

	"go.uber.org/zap"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error augments the standard error interface with a Wrap method.
//
// The main difference with github.com/pkg/errors is that we are wrapping
// errors from errors, not from text.
type Error struct {
	msg    string
	err    error
	parent *Error
}

// Error message
func (e *Error) Error() string {
	if e.parent != nil && e.err != nil && e.err != e.parent.err {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.err == nil && e.parent != nil {
		return e.parent
	}
	return e.err
}

// Wrap a nested error
func (e *Error) Wrap(err error) *Error {
	e.err = err
	return e
}

// WrapMessage derives a new error with some detail appended to the message.
//
// The receiver is left untouched, so this is safe to use on package-level sentinels.
// The derived error still matches the receiver with Is.
func (e *Error) WrapMessage(format string, args ...interface{}) *Error {
	return &Error{
		msg:    e.msg + ": " + fmt.Sprintf(format, args...),
		err:    e.err,
		parent: e,
	}
}

// WrapWithLog logs the error cause with some fields, then derives a new error wrapping the cause.
//
// The derived error matches both the receiver and the cause with Is.
func (e *Error) WrapWithLog(logger *zap.Logger, err error, fields ...zap.Field) *Error {
	if logger != nil {
		logger.Error(e.msg, append(fields, zap.Error(err))...)
	}
	return &Error{
		msg:    e.msg,
		err:    err,
		parent: e,
	}
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	if e == target || e.err == target {
		return true
	}
	if e.parent != nil {
		return stderr.Is(e.parent, target)
	}
	return false
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.As)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
