package xmlrpc

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/openrobots-dev/rosnode/xerr"
)

// DefaultStreamerFixedLen is the default padded body size used by
// PadToFixedLen, matching the original firmware's
// UROS_RPCSTREAMER_FIXLEN: rather than compute a message's exact byte
// length up front, the streamer renders into a fixed-size buffer and
// pads the remainder with an XML comment, so Content-Length is known
// before the body is serialized.
const DefaultStreamerFixedLen = 4000

// EncodeMethodCall renders a <methodCall> document.
func EncodeMethodCall(method string, params ...Value) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<methodCall><methodName>")
	b.WriteString(escape(method))
	b.WriteString("</methodName><params>")
	for _, p := range params {
		b.WriteString("<param>")
		writeValue(&b, p)
		b.WriteString("</param>")
	}
	b.WriteString("</params></methodCall>")
	return b.String()
}

// EncodeMethodResponse renders a <methodResponse> document carrying a
// single success value.
func EncodeMethodResponse(v Value) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<methodResponse><params><param>")
	writeValue(&b, v)
	b.WriteString("</param></params></methodResponse>")
	return b.String()
}

// EncodeFault renders a <methodResponse> carrying a <fault>.
func EncodeFault(code int32, message string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<methodResponse><fault>")
	writeValue(&b, StructOf(
		Member{Name: "faultCode", Value: Int(code)},
		Member{Name: "faultString", Value: String(message)},
	))
	b.WriteString("</fault></methodResponse>")
	return b.String()
}

// PadToFixedLen pads doc with a trailing XML comment so its total byte
// length is exactly fixedLen (DefaultStreamerFixedLen if <= 0). When
// the gap is shorter than an empty comment (7 bytes), the result is
// len(doc)+7 bytes, longer than fixedLen. It returns an error if doc
// alone already exceeds fixedLen.
func PadToFixedLen(doc string, fixedLen int) (string, error) {
	if fixedLen <= 0 {
		fixedLen = DefaultStreamerFixedLen
	}
	if len(doc) > fixedLen {
		return "", xerr.Parse.Errorf("xmlrpc: document length %d exceeds fixed streamer length %d", len(doc), fixedLen)
	}
	pad := fixedLen - len(doc)
	if pad == 0 {
		return doc, nil
	}
	// An XML comment absorbs arbitrary padding without disturbing a
	// conformant parser, which stops at the document's closing tag.
	const commentOpen, commentClose = "<!--", "-->"
	minPad := len(commentOpen) + len(commentClose)
	if pad < minPad {
		pad = minPad // caller's fixedLen is advisory once a bare minimum is needed
	}
	fill := pad - minPad
	return doc + commentOpen + strings.Repeat(" ", fill) + commentClose, nil
}

func writeValue(b *strings.Builder, v Value) {
	b.WriteString("<value>")
	switch v.Kind {
	case KindInt:
		b.WriteString("<int>")
		b.WriteString(strconv.FormatInt(int64(v.Int), 10))
		b.WriteString("</int>")
	case KindBool:
		b.WriteString("<boolean>")
		if v.Bool {
			b.WriteString("1")
		} else {
			b.WriteString("0")
		}
		b.WriteString("</boolean>")
	case KindDouble:
		b.WriteString("<double>")
		b.WriteString(strconv.FormatFloat(v.Double, 'g', -1, 64))
		b.WriteString("</double>")
	case KindString:
		b.WriteString("<string>")
		b.WriteString(escape(v.Str))
		b.WriteString("</string>")
	case KindBase64:
		b.WriteString("<base64>")
		b.WriteString(base64.StdEncoding.EncodeToString(v.Bytes))
		b.WriteString("</base64>")
	case KindDateTime:
		b.WriteString("<dateTime.iso8601>")
		b.WriteString(v.DateTime.Format("20060102T15:04:05"))
		b.WriteString("</dateTime.iso8601>")
	case KindStruct:
		b.WriteString("<struct>")
		for _, m := range v.Struct {
			b.WriteString("<member><name>")
			b.WriteString(escape(m.Name))
			b.WriteString("</name>")
			writeValue(b, m.Value)
			b.WriteString("</member>")
		}
		b.WriteString("</struct>")
	case KindArray:
		b.WriteString("<array><data>")
		for _, e := range v.Array {
			writeValue(b, e)
		}
		b.WriteString("</data></array>")
	}
	b.WriteString("</value>")
}

func escape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}

const xmlHeader = `<?xml version="1.0"?>`
