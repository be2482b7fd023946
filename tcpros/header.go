// Package tcpros implements the streaming wire protocol peers use to
// exchange typed binary messages and service request/responses: the
// handshake header codec and the four connection state machines
// (publisher accept, subscriber connect, service server, service
// caller) of spec.md §4.7.
package tcpros

import (
	"bytes"
	"io"
	"sort"

	"github.com/openrobots-dev/rosnode/wire"
	"github.com/openrobots-dev/rosnode/xerr"
)

// MaxHeaderLen bounds the overall handshake header block; a length
// prefix beyond this (or zero) is rejected as malformed rather than
// trusted.
const MaxHeaderLen = 1 << 20 // 1 MiB

// Header is the handshake key/value set exchanged at the start of every
// TCPROS session. Keys are case-sensitive per spec.md §4.7.
type Header map[string]string

// Well-known handshake keys.
const (
	KeyCallerID          = "callerid"
	KeyTopic             = "topic"
	KeyService           = "service"
	KeyType              = "type"
	KeyMD5Sum            = "md5sum"
	KeyMessageDefinition = "message_definition"
	KeyLatching          = "latching"
	KeyPersistent        = "persistent"
	KeyTCPNoDelay        = "tcp_nodelay"
	KeyRequestType       = "request_type"
	KeyResponseType      = "response_type"
	KeyProbe             = "probe"
	KeyError             = "error"
)

// MD5Wildcard matches any registered type's md5sum, per the boundary
// behavior "md5sum=* matches any registered type".
const MD5Wildcard = "*"

// WriteHeader frames h as a 4-byte little-endian overall length
// followed by each KEY=VALUE pair, itself prefixed by its own 4-byte
// length, per spec.md §4.7/§6. Keys are written in sorted order so the
// wire form is deterministic (useful for tests and logs), which is not
// itself part of the protocol contract.
func WriteHeader(w io.Writer, h Header) error {
	var body bytes.Buffer

	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		pair := []byte(k + "=" + h[k])
		if err := wire.WriteString(&body, pair); err != nil {
			return xerr.SysError.Error(err)
		}
	}

	if err := wire.WriteLE32(w, uint32(body.Len())); err != nil {
		return xerr.SysError.Error(err)
	}
	_, err := w.Write(body.Bytes())
	if err != nil {
		return xerr.SysError.Error(err)
	}
	return nil
}

// ReadHeader reads one handshake header block from r. A zero or
// oversized overall length is PARSE, per spec.md §8's boundary
// behaviors.
func ReadHeader(r io.Reader) (Header, error) {
	total, err := wire.ReadLE32(r)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, xerr.Parse.Errorf("tcpros: zero-length header")
	}
	if total > MaxHeaderLen {
		return nil, xerr.Parse.Errorf("tcpros: header length %d exceeds cap %d", total, MaxHeaderLen)
	}

	body := make([]byte, total)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, xerr.Parse.Error(err)
	}

	br := bytes.NewReader(body)
	h := make(Header)
	for br.Len() > 0 {
		pair, err := wire.ReadString(br)
		if err != nil {
			return nil, err
		}
		k, v, ok := splitKV(pair)
		if !ok {
			return nil, xerr.Parse.Errorf("tcpros: malformed header pair %q", pair)
		}
		h[k] = v
	}
	return h, nil
}

func splitKV(pair []byte) (key, value string, ok bool) {
	for i, b := range pair {
		if b == '=' {
			return string(pair[:i]), string(pair[i+1:]), true
		}
	}
	return "", "", false
}

// Bool01 renders a boolean as the "0"/"1" strings the handshake keys
// use.
func Bool01(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// IsTrue01 parses a handshake "0"/"1" boolean string, defaulting to
// false for anything other than "1".
func IsTrue01(s string) bool {
	return s == "1"
}
