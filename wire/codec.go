package wire

import (
	"encoding/binary"
	"io"

	"github.com/openrobots-dev/rosnode/xerr"
)

// MaxFrameLen bounds any single length-prefixed field this module will
// accept off the wire, guarding both TCPROS handshake header fields and
// TCPROS payload frames against a hostile or corrupt length prefix.
const MaxFrameLen = 64 << 20 // 64 MiB

// WriteLE32 appends x to w as four little-endian bytes.
func WriteLE32(w io.Writer, x uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	_, err := w.Write(b[:])
	return err
}

// ReadLE32 reads four little-endian bytes from r.
func ReadLE32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, xerr.EOF.Error(err)
		}
		return 0, xerr.SysError.Error(err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// WriteString writes s framed as a 4-byte little-endian length followed
// by its raw bytes, per the TCPROS wire format.
func WriteString(w io.Writer, s []byte) error {
	if err := WriteLE32(w, uint32(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	_, err := w.Write(s)
	return err
}

// ReadString reads a length-prefixed byte string from r. A length
// exceeding MaxFrameLen is rejected as a malformed frame rather than
// attempting an oversized allocation.
func ReadString(r io.Reader) ([]byte, error) {
	n, err := ReadLE32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > MaxFrameLen {
		return nil, xerr.Parse.Errorf("frame length %d exceeds cap %d", n, MaxFrameLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, xerr.Parse.Error(err)
	}
	return buf, nil
}
