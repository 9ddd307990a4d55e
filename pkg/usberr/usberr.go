// Package usberr defines the error taxonomy shared by the USB transport and
// the CDC-ACM session layer. Codes carry the libusb error numbers so that
// diagnostics stay comparable with other language bindings and with kernel
// logs.
package usberr

import (
	"errors"
	"fmt"
)

// Code is a single failure class. It implements error so transports can
// return a bare Code when there is nothing more to say.
type Code int

const (
	OK           Code = 0
	IO           Code = -1
	InvalidParam Code = -2
	Access       Code = -3
	NoDevice     Code = -4
	NotFound     Code = -5
	Busy         Code = -6
	Timeout      Code = -7
	Overflow     Code = -8
	Pipe         Code = -9
	Interrupted  Code = -10
	NoMem        Code = -11
	NotSupported Code = -12
	Other        Code = -99
)

var codeNames = map[Code]string{
	OK:           "SUCCESS",
	IO:           "ERROR_IO",
	InvalidParam: "ERROR_INVALID_PARAM",
	Access:       "ERROR_ACCESS",
	NoDevice:     "ERROR_NO_DEVICE",
	NotFound:     "ERROR_NOT_FOUND",
	Busy:         "ERROR_BUSY",
	Timeout:      "ERROR_TIMEOUT",
	Overflow:     "ERROR_OVERFLOW",
	Pipe:         "ERROR_PIPE",
	Interrupted:  "ERROR_INTERRUPTED",
	NoMem:        "ERROR_NO_MEM",
	NotSupported: "ERROR_NOT_SUPPORTED",
	Other:        "ERROR_OTHER",
}

var codeMessages = map[Code]string{
	OK:           "success",
	IO:           "input/output error",
	InvalidParam: "invalid parameter",
	Access:       "access denied (insufficient permissions)",
	NoDevice:     "no such device (it may have been disconnected)",
	NotFound:     "entity not found",
	Busy:         "resource busy",
	Timeout:      "operation timed out",
	Overflow:     "overflow",
	Pipe:         "pipe error",
	Interrupted:  "system call interrupted (perhaps due to signal)",
	NoMem:        "insufficient memory",
	NotSupported: "operation not supported or unimplemented on this platform",
	Other:        "other error",
}

// Name returns the symbolic name of the code, e.g. "ERROR_TIMEOUT".
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ERROR_%d", int(c))
}

// Message returns the human-readable description of the code.
func (c Code) Message() string {
	if m, ok := codeMessages[c]; ok {
		return m
	}
	return "unknown error"
}

func (c Code) Error() string {
	return c.Message()
}

// Error ties a failure code to the operation that produced it. Op is a short
// phrase naming the step that failed ("claim interface", "bulk", ...).
type Error struct {
	Op   string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code.Message())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against a bare Code target, so
// errors.Is(err, usberr.Busy) works on wrapped errors.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && e.Code == c
}

// New returns an Error carrying just op and code.
func New(op string, code Code) *Error {
	return &Error{Op: op, Code: code}
}

// CodeOf extracts the taxonomy code from err. Unrecognized non-nil errors
// map to Other; nil maps to OK.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Other
}
