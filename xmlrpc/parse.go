package xmlrpc

import (
	"bufio"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/openrobots-dev/rosnode/xerr"
)

// DefaultReadBufLen is the default size of the bounded read buffer
// fronting the XML decoder, matching the original firmware's
// UROS_RPCPARSER_RDBUFLEN.
const DefaultReadBufLen = 128

// MethodCall is a parsed <methodCall>: a method name plus its ordered
// parameter values.
type MethodCall struct {
	Method string
	Params []Value
}

// MethodResponse is a parsed <methodResponse>: either a single success
// value or a <fault> struct.
type MethodResponse struct {
	Fault bool
	Value Value
}

// Reader parses XML-RPC documents from a stream through a bounded
// buffer, so a single RPC frame can never make the parser allocate
// unboundedly regardless of peer behavior.
type Reader struct {
	dec *xml.Decoder
}

// NewReader wraps r with a bufio.Reader of size bufLen (DefaultReadBufLen
// if <= 0) and prepares an XML decoder over it.
func NewReader(r io.Reader, bufLen int) *Reader {
	if bufLen <= 0 {
		bufLen = DefaultReadBufLen
	}
	br := bufio.NewReaderSize(r, bufLen)
	return &Reader{dec: xml.NewDecoder(br)}
}

// ReadMethodCall parses one <methodCall>...</methodCall> document.
func (r *Reader) ReadMethodCall() (MethodCall, error) {
	if err := r.skipToStart("methodCall"); err != nil {
		return MethodCall{}, err
	}

	var mc MethodCall
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return MethodCall{}, xerr.Parse.Error(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "methodName":
				name, err := r.readCharData()
				if err != nil {
					return MethodCall{}, err
				}
				mc.Method = name
			case "params":
				params, err := r.readParams()
				if err != nil {
					return MethodCall{}, err
				}
				mc.Params = params
			}
		case xml.EndElement:
			if t.Name.Local == "methodCall" {
				return mc, nil
			}
		}
	}
}

// ReadMethodResponse parses one <methodResponse>...</methodResponse>
// document.
func (r *Reader) ReadMethodResponse() (MethodResponse, error) {
	if err := r.skipToStart("methodResponse"); err != nil {
		return MethodResponse{}, err
	}

	var mr MethodResponse
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return MethodResponse{}, xerr.Parse.Error(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "params":
				params, err := r.readParams()
				if err != nil {
					return MethodResponse{}, err
				}
				if len(params) > 0 {
					mr.Value = params[0]
				}
			case "fault":
				v, err := r.readValue()
				if err != nil {
					return MethodResponse{}, err
				}
				mr.Fault = true
				mr.Value = v
			}
		case xml.EndElement:
			if t.Name.Local == "methodResponse" {
				return mr, nil
			}
		}
	}
}

func (r *Reader) skipToStart(name string) error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return xerr.Parse.Error(err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == name {
			return nil
		}
	}
}

func (r *Reader) readParams() ([]Value, error) {
	var out []Value
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, xerr.Parse.Error(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "param" {
				v, err := r.readValue()
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		case xml.EndElement:
			if t.Name.Local == "params" {
				return out, nil
			}
		}
	}
}

// readValue expects to be positioned before a <value> start element and
// consumes through its matching end element.
func (r *Reader) readValue() (Value, error) {
	if err := r.skipToStart("value"); err != nil {
		return Value{}, err
	}

	tok, err := r.dec.Token()
	if err != nil {
		return Value{}, xerr.Parse.Error(err)
	}

	switch t := tok.(type) {
	case xml.CharData:
		// Bare string content with no typed wrapper.
		s := string(t)
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return String(strings.TrimSpace(s)), nil
	case xml.EndElement:
		// Empty <value></value> is an empty string.
		return String(""), nil
	case xml.StartElement:
		return r.readTypedValue(t)
	default:
		return Value{}, xerr.Parse.Errorf("xmlrpc: unexpected token inside <value>")
	}
}

func (r *Reader) readTypedValue(start xml.StartElement) (Value, error) {
	switch start.Name.Local {
	case "int", "i4":
		s, err := r.readCharDataUntil(start.Name.Local)
		if err != nil {
			return Value{}, err
		}
		n, convErr := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if convErr != nil {
			return Value{}, xerr.Parse.Error(convErr)
		}
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return Int(int32(n)), nil
	case "boolean":
		s, err := r.readCharDataUntil(start.Name.Local)
		if err != nil {
			return Value{}, err
		}
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return Bool(strings.TrimSpace(s) == "1"), nil
	case "double":
		s, err := r.readCharDataUntil(start.Name.Local)
		if err != nil {
			return Value{}, err
		}
		f, convErr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if convErr != nil {
			return Value{}, xerr.Parse.Error(convErr)
		}
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return Double(f), nil
	case "string":
		s, err := r.readCharDataUntil(start.Name.Local)
		if err != nil {
			return Value{}, err
		}
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return String(s), nil
	case "base64":
		s, err := r.readCharDataUntil(start.Name.Local)
		if err != nil {
			return Value{}, err
		}
		raw, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if decErr != nil {
			return Value{}, xerr.Parse.Error(decErr)
		}
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return Base64(raw), nil
	case "dateTime.iso8601":
		s, err := r.readCharDataUntil(start.Name.Local)
		if err != nil {
			return Value{}, err
		}
		t, parseErr := time.Parse("20060102T15:04:05", strings.TrimSpace(s))
		if parseErr != nil {
			return Value{}, xerr.Parse.Error(parseErr)
		}
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return DateTime(t), nil
	case "struct":
		members, err := r.readStruct()
		if err != nil {
			return Value{}, err
		}
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return StructOf(members...), nil
	case "array":
		values, err := r.readArray()
		if err != nil {
			return Value{}, err
		}
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return ArrayOf(values...), nil
	default:
		return Value{}, xerr.Parse.Errorf("xmlrpc: unsupported value type %q", start.Name.Local)
	}
}

func (r *Reader) readStruct() ([]Member, error) {
	var members []Member
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, xerr.Parse.Error(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "member" {
				m, err := r.readMember()
				if err != nil {
					return nil, err
				}
				members = append(members, m)
			}
		case xml.EndElement:
			if t.Name.Local == "struct" {
				return members, nil
			}
		}
	}
}

func (r *Reader) readMember() (Member, error) {
	var m Member
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return Member{}, xerr.Parse.Error(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "name":
				name, err := r.readCharData()
				if err != nil {
					return Member{}, err
				}
				m.Name = name
			case "value":
				v, err := r.readValueAlreadyOpen()
				if err != nil {
					return Member{}, err
				}
				m.Value = v
			}
		case xml.EndElement:
			if t.Name.Local == "member" {
				return m, nil
			}
		}
	}
}

// readValueAlreadyOpen reads a <value> whose start element has already
// been consumed by the caller's token loop.
func (r *Reader) readValueAlreadyOpen() (Value, error) {
	tok, err := r.dec.Token()
	if err != nil {
		return Value{}, xerr.Parse.Error(err)
	}
	switch t := tok.(type) {
	case xml.CharData:
		s := strings.TrimSpace(string(t))
		if err := r.expectEnd("value"); err != nil {
			return Value{}, err
		}
		return String(s), nil
	case xml.EndElement:
		return String(""), nil
	case xml.StartElement:
		return r.readTypedValue(t)
	default:
		return Value{}, xerr.Parse.Errorf("xmlrpc: unexpected token inside <value>")
	}
}

func (r *Reader) readArray() ([]Value, error) {
	if err := r.skipToStart("data"); err != nil {
		return nil, err
	}
	var out []Value
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, xerr.Parse.Error(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "value" {
				v, err := r.readValueAlreadyOpen()
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		case xml.EndElement:
			if t.Name.Local == "array" {
				return out, nil
			}
		}
	}
}

func (r *Reader) readCharData() (string, error) {
	tok, err := r.dec.Token()
	if err != nil {
		return "", xerr.Parse.Error(err)
	}
	cd, ok := tok.(xml.CharData)
	if !ok {
		if _, isEnd := tok.(xml.EndElement); isEnd {
			return "", nil
		}
		return "", xerr.Parse.Errorf("xmlrpc: expected char data, got %T", tok)
	}
	s := string(cd)
	if _, err := r.dec.Token(); err != nil { // consume end element
		return "", xerr.Parse.Error(err)
	}
	return s, nil
}

func (r *Reader) readCharDataUntil(elem string) (string, error) {
	tok, err := r.dec.Token()
	if err != nil {
		return "", xerr.Parse.Error(err)
	}
	switch t := tok.(type) {
	case xml.CharData:
		s := string(t)
		if _, err := r.dec.Token(); err != nil { // consume </elem>
			return "", xerr.Parse.Error(err)
		}
		return s, nil
	case xml.EndElement:
		if t.Name.Local == elem {
			return "", nil
		}
		return "", xerr.Parse.Errorf("xmlrpc: unexpected end element %q", t.Name.Local)
	default:
		return "", xerr.Parse.Errorf("xmlrpc: unexpected token %T in <%s>", tok, elem)
	}
}

func (r *Reader) expectEnd(name string) error {
	tok, err := r.dec.Token()
	if err != nil {
		return xerr.Parse.Error(err)
	}
	ee, ok := tok.(xml.EndElement)
	if !ok || ee.Name.Local != name {
		return xerr.Parse.Errorf("xmlrpc: expected </%s>, got %v", name, fmt.Sprintf("%T", tok))
	}
	return nil
}
