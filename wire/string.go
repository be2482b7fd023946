// Package wire implements the length-prefixed byte-buffer primitives the
// rest of the node runtime frames its messages with: a borrowed/owned
// string type, little-endian integer codecs, and dotted-quad IP parsing.
package wire

// Kind distinguishes a String that owns its backing buffer from one that
// only borrows a caller-supplied slice.
type Kind uint8

const (
	// Borrowed strings never copy and are never mutated by Clean.
	Borrowed Kind = iota
	// Owned strings hold a private copy, released by Clean.
	Owned
)

// String is a length-prefixed byte buffer with no implicit terminator.
// A zero-length String never dereferences its buffer, so the zero value
// is always safe to use.
type String struct {
	kind Kind
	buf  []byte
}

// Const wraps b as a non-owning String; the caller retains ownership of
// the backing array and must keep it alive for the String's lifetime.
func Const(b []byte) String {
	if len(b) == 0 {
		return String{}
	}
	return String{kind: Borrowed, buf: b}
}

// ConstStr is the string literal convenience form of Const.
func ConstStr(s string) String {
	return Const([]byte(s))
}

// Own copies b into a private buffer owned by the returned String.
func Own(b []byte) String {
	if len(b) == 0 {
		return String{}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return String{kind: Owned, buf: cp}
}

// OwnStr is the string literal convenience form of Own.
func OwnStr(s string) String {
	return Own([]byte(s))
}

// Len reports the buffer length.
func (s String) Len() int {
	return len(s.buf)
}

// IsEmpty reports whether the String has zero length.
func (s String) IsEmpty() bool {
	return len(s.buf) == 0
}

// Bytes returns the underlying buffer. Callers must not mutate a
// Borrowed String's bytes.
func (s String) Bytes() []byte {
	return s.buf
}

// String renders the buffer as a Go string (always a copy).
func (s String) String() string {
	return string(s.buf)
}

// Clean releases the buffer if the String owns it; Borrowed strings are
// never freed since the caller retains ownership.
func (s *String) Clean() {
	if s.kind == Owned {
		s.buf = nil
	}
}

// Equal compares two Strings byte-wise, ignoring ownership.
func (s String) Equal(o String) bool {
	if len(s.buf) != len(o.buf) {
		return false
	}
	for i := range s.buf {
		if s.buf[i] != o.buf[i] {
			return false
		}
	}
	return true
}
