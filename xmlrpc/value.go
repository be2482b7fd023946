// Package xmlrpc implements a minimal XML-RPC codec: the value tagged
// union, a streaming bounded-buffer parser, and a fixed-length-padded
// response streamer. No XML-RPC library appears anywhere in the
// reference corpus, so this package is built directly on the standard
// library's encoding/xml — see DESIGN.md for the justification.
package xmlrpc

import (
	"time"

	"github.com/openrobots-dev/rosnode/xerr"
)

// Kind tags which arm of the Value union is populated.
type Kind uint8

const (
	KindInt Kind = iota
	KindBool
	KindDouble
	KindString
	KindBase64
	KindStruct
	KindArray
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "boolean"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBase64:
		return "base64"
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	case KindDateTime:
		return "dateTime.iso8601"
	default:
		return "unknown"
	}
}

// Member is one name/value pair of a <struct>.
type Member struct {
	Name  string
	Value Value
}

// Value is a tagged union over every XML-RPC scalar and container type
// a Master/Slave call exchanges.
type Value struct {
	Kind Kind

	Int      int32
	Bool     bool
	Double   float64
	Str      string
	Bytes    []byte
	Struct   []Member
	Array    []Value
	DateTime time.Time
}

func Int(v int32) Value          { return Value{Kind: KindInt, Int: v} }
func Bool(v bool) Value          { return Value{Kind: KindBool, Bool: v} }
func Double(v float64) Value     { return Value{Kind: KindDouble, Double: v} }
func String(v string) Value      { return Value{Kind: KindString, Str: v} }
func Base64(v []byte) Value      { return Value{Kind: KindBase64, Bytes: v} }
func DateTime(v time.Time) Value { return Value{Kind: KindDateTime, DateTime: v} }

func StructOf(members ...Member) Value {
	return Value{Kind: KindStruct, Struct: members}
}

func ArrayOf(values ...Value) Value {
	return Value{Kind: KindArray, Array: values}
}

// Field looks up a struct member by name.
func (v Value) Field(name string) (Value, bool) {
	if v.Kind != KindStruct {
		return Value{}, false
	}
	for _, m := range v.Struct {
		if m.Name == name {
			return m.Value, true
		}
	}
	return Value{}, false
}

// AsString returns the string payload, or an error if this value isn't
// a string.
func (v Value) AsString() (string, error) {
	if v.Kind != KindString {
		return "", xerr.Parse.Errorf("xmlrpc: expected string, got %s", v.Kind)
	}
	return v.Str, nil
}

// AsInt returns the int payload, or an error if this value isn't an int.
func (v Value) AsInt() (int32, error) {
	if v.Kind != KindInt {
		return 0, xerr.Parse.Errorf("xmlrpc: expected int, got %s", v.Kind)
	}
	return v.Int, nil
}

// AsArray returns the array payload, or an error if this value isn't an
// array.
func (v Value) AsArray() ([]Value, error) {
	if v.Kind != KindArray {
		return nil, xerr.Parse.Errorf("xmlrpc: expected array, got %s", v.Kind)
	}
	return v.Array, nil
}
