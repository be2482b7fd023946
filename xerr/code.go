// Package xerr provides the node runtime's error-code model: a numeric
// CodeError classification plus an Error value carrying an optional
// parent chain, grounded on the corpus's own errors package shape
// (code + message + parent, errors.Is/As compatible).
package xerr

import (
	"strconv"
)

// CodeError is a numeric error classification, analogous to an HTTP
// status code. Zero means unknown/unset.
type CodeError uint16

// idMsg maps a registered code to its human-readable message.
var idMsg = make(map[CodeError]string)

// Predefined kinds, one per error kind named in the specification's
// error handling design: OK, TIMEOUT, NOT_IMPLEMENTED, NO_BUFFER, PARSE,
// EOF, BAD_PARAM, CONN_REFUSED, CONN_RESET, NOT_CONNECTED, MAP_MISS,
// MAP_FULL, NO_MEMORY, BUSY, FORCED, SYSERROR.
const (
	UnknownError CodeError = iota
	OK
	Timeout
	NotImplemented
	NoBuffer
	Parse
	EOF
	BadParam
	ConnRefused
	ConnReset
	NotConnected
	MapMiss
	MapFull
	NoMemory
	Busy
	Forced
	SysError
)

func init() {
	register(OK, "ok")
	register(Timeout, "operation timed out")
	register(NotImplemented, "not implemented")
	register(NoBuffer, "no buffer space available")
	register(Parse, "malformed wire input")
	register(EOF, "end of stream")
	register(BadParam, "semantic parameter rejection")
	register(ConnRefused, "connection refused")
	register(ConnReset, "connection reset by peer")
	register(NotConnected, "not connected")
	register(MapMiss, "name not found in registry")
	register(MapFull, "registry full")
	register(NoMemory, "memory pool exhausted")
	register(Busy, "resource contested")
	register(Forced, "operation cancelled")
	register(SysError, "underlying platform error")
}

func register(c CodeError, msg string) {
	idMsg[c] = msg
}

// Message returns the registered human-readable message for the code,
// or a generic placeholder when the code was never registered.
func (c CodeError) Message() string {
	if m, ok := idMsg[c]; ok {
		return m
	}
	return "unknown error"
}

// Uint16 returns the underlying numeric value.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// String renders the numeric code as a decimal string.
func (c CodeError) String() string {
	return strconv.Itoa(int(c))
}

// Error builds a new Error value carrying this code, the registered
// message, and the given parents.
func (c CodeError) Error(parents ...error) Error {
	return New(c, c.Message(), parents...)
}

// Errorf builds a new Error value with a formatted message instead of
// the registered one.
func (c CodeError) Errorf(format string, args ...interface{}) Error {
	return Newf(c, format, args...)
}
