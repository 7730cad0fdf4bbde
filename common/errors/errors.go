// Package errors implements coded errors that keep their identity across
// process and wire boundaries.
//
// Every error is registered under a (module, code) pair so that a caller on
// the other side of a gRPC connection can branch on the exact failure kind.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	// UnknownModule is the module name used when the module is unknown.
	UnknownModule = "unknown"

	// CodeNoError is the reserved "no error" code.
	CodeNoError = 0
)

var errUnknownError = New(UnknownModule, 1, "unknown error")

// Re-exports so this package can be used as a replacement for errors.
var (
	As     = errors.As
	Is     = errors.Is
	Unwrap = errors.Unwrap
)

var registeredErrors sync.Map

type codedError struct {
	module string
	code   uint32
	msg    string
}

func (e *codedError) Error() string {
	return e.msg
}

type codedErrorWithContext struct {
	err     error
	context string
}

func (e *codedErrorWithContext) Error() string {
	return fmt.Sprintf("%v: %s", e.err, e.context)
}

func (e *codedErrorWithContext) Unwrap() error {
	return e.err
}

// WithContext wraps a coded error with a free-form detail string. The
// result still matches the original error under Is.
func WithContext(err error, context string) error {
	if len(context) == 0 {
		return err
	}

	return &codedErrorWithContext{
		err:     err,
		context: context,
	}
}

// Context returns the detail string attached with WithContext, if any.
func Context(err error) string {
	if err == nil {
		return ""
	}

	var cec *codedErrorWithContext
	if As(err, &cec) {
		return cec.context
	}
	return ""
}

// New creates and registers a new coded error.
//
// The module and code pair must be unique and the code must not be the
// reserved CodeNoError, otherwise this panics.
func New(module string, code uint32, msg string) error {
	if code == CodeNoError {
		panic(fmt.Errorf("errors: code %d is reserved", CodeNoError))
	}

	e := &codedError{
		module: module,
		code:   code,
		msg:    msg,
	}

	key := errorKey(module, code)
	if prev, loaded := registeredErrors.LoadOrStore(key, e); loaded {
		panic(fmt.Errorf("errors: already registered: %s (existing: %s)", key, prev))
	}

	return e
}

// FromCode reconstructs a registered error from its module and code. The
// message is used to recover any context that was attached to it.
//
// Unresolvable pairs yield a fresh error carrying the given message.
func FromCode(module string, code uint32, message string) error {
	e, exists := registeredErrors.Load(errorKey(module, code))
	if !exists || e == errUnknownError {
		return &codedError{
			module: module,
			code:   code,
			msg:    message,
		}
	}
	err := e.(error)

	if message == "" || message == err.Error() {
		return err
	}

	prefix := fmt.Sprintf("%v: ", err)
	return WithContext(err, strings.TrimPrefix(message, prefix))
}

// Code returns the module and code of the given error.
//
// Errors that are not coded map to the unknown error; a nil error maps to an
// empty module and CodeNoError.
func Code(err error) (string, uint32) {
	if err == nil {
		return "", CodeNoError
	}

	var ce *codedError
	if !As(err, &ce) {
		ce = errUnknownError.(*codedError)
	}

	return ce.module, ce.code
}

func errorKey(module string, code uint32) string {
	return fmt.Sprintf("%s-%d", module, code)
}
