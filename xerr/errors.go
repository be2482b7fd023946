package xerr

import (
	"errors"
	"fmt"
	"strings"
)

// Error extends the standard error with a numeric code and a parent
// chain, so a registry lookup miss or a protocol mismatch can carry both
// a machine-readable kind and a human-readable trail back to its cause.
type Error interface {
	error

	Code() CodeError
	IsCode(code CodeError) bool
	HasCode(code CodeError) bool

	Add(parents ...error)
	Parents() []error

	Unwrap() []error
	Is(target error) bool
}

type erx struct {
	code CodeError
	msg  string
	pare []error
}

// New builds an Error with the given code, message and parents.
func New(code CodeError, msg string, parents ...error) Error {
	e := &erx{code: code, msg: msg}
	e.Add(parents...)
	return e
}

// Newf builds an Error with a formatted message.
func Newf(code CodeError, format string, args ...interface{}) Error {
	return New(code, fmt.Sprintf(format, args...))
}

// IfError returns an Error wrapping every non-nil err, or nil if
// every argument is nil — mirrors the corpus's IfError helper used to
// conditionally surface a parent failure without an explicit nil check
// at every call site.
func IfError(code CodeError, msg string, errs ...error) Error {
	var p []error
	for _, e := range errs {
		if e != nil {
			p = append(p, e)
		}
	}
	if len(p) == 0 {
		return nil
	}
	return New(code, msg, p...)
}

func (e *erx) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, p := range e.pare {
		if p == nil {
			continue
		}
		b.WriteString(": ")
		b.WriteString(p.Error())
	}
	return b.String()
}

func (e *erx) Code() CodeError {
	if e == nil {
		return UnknownError
	}
	return e.code
}

func (e *erx) IsCode(code CodeError) bool {
	return e != nil && e.code == code
}

func (e *erx) HasCode(code CodeError) bool {
	if e == nil {
		return false
	}
	if e.code == code {
		return true
	}
	for _, p := range e.pare {
		var pe Error
		if errors.As(p, &pe) && pe.HasCode(code) {
			return true
		}
	}
	return false
}

func (e *erx) Add(parents ...error) {
	for _, p := range parents {
		if p != nil {
			e.pare = append(e.pare, p)
		}
	}
}

func (e *erx) Parents() []error {
	return e.pare
}

func (e *erx) Unwrap() []error {
	return e.pare
}

func (e *erx) Is(target error) bool {
	var t Error
	if !errors.As(target, &t) {
		return false
	}
	return e.code == t.Code()
}

// Is reports whether err is an Error carrying the given code, anywhere
// in its parent chain.
func Is(err error, code CodeError) bool {
	var e Error
	if !errors.As(err, &e) {
		return false
	}
	return e.HasCode(code)
}

// Get extracts the Error interface from err, if present.
func Get(err error) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
