// Package slaveapi implements the Slave API RPC dispatcher: the Master
// and peer nodes call these methods on us over XMLRPC, per spec.md
// §4.6. Each handler reads its typed arguments, consults the registry,
// and writes a three-element response [code, statusMessage, value]
// where code ∈ {-1 error, 0 failure, 1 success}.
package slaveapi

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/openrobots-dev/rosnode/logger"
	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/transport"
	"github.com/openrobots-dev/rosnode/wire"
	"github.com/openrobots-dev/rosnode/xerr"
	"github.com/openrobots-dev/rosnode/xmlrpc"
)

// Callbacks is the application collaborator surface the Slave dispatch
// forwards to, per spec.md §6's "application callback surface":
// userShutdown, userParamUpdate, and the subscriber driver's reaction
// to a changed publisher list.
type Callbacks struct {
	// Shutdown reacts to a Master-initiated shutdown; must be
	// idempotent, since a second shutdown() call is a no-op per
	// spec.md §8.
	Shutdown func(reason string)

	// ParamUpdate rejects with xerr.BadParam on a type/range error,
	// which the dispatcher maps to response code 0.
	ParamUpdate func(key string, value xmlrpc.Value) error

	// PublisherUpdate notifies the subscriber driver that topic's
	// publisher list changed.
	PublisherUpdate func(topic string, publishers []string) error
}

// Server dispatches the Slave API methods onto a shared Registry.
type Server struct {
	Registry   *registry.Registry
	CallerID   string
	MasterURI  string
	TCPROSAddr wire.Address
	ReadBufLen int
	FixedLen   int
	Callbacks  Callbacks
	Log        logger.Logger

	shutdownOnce bool
}

// New builds a Server. log may be nil, in which case a discarding
// logger is used.
func New(reg *registry.Registry, callerID, masterURI string, tcprosAddr wire.Address, cb Callbacks, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		Registry:   reg,
		CallerID:   callerID,
		MasterURI:  masterURI,
		TCPROSAddr: tcprosAddr,
		ReadBufLen: xmlrpc.DefaultReadBufLen,
		FixedLen:   xmlrpc.DefaultStreamerFixedLen,
		Callbacks:  cb,
		Log:        log,
	}
}

// ServeConn handles exactly one HTTP+XMLRPC method call on conn, then
// leaves the connection for the caller (a TCPROS/XMLRPC pool worker) to
// close. This is the per-accept unit of work dispatched by the
// Slave-RPC thread pool.
func (s *Server) ServeConn(conn *transport.Conn) error {
	br := bufio.NewReaderSize(conn, s.bufLen())

	req, err := http.ReadRequest(br)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return xerr.Parse.Error(err)
	}
	defer req.Body.Close()

	rd := xmlrpc.NewReader(req.Body, s.bufLen())
	call, err := rd.ReadMethodCall()
	if err != nil {
		return s.writeFault(conn, err)
	}

	code, msg, value := s.dispatch(call.Method, call.Params)

	body := xmlrpc.EncodeMethodResponse(xmlrpc.ArrayOf(xmlrpc.Int(code), xmlrpc.String(msg), value))
	return s.writeResponse(conn, body)
}

func (s *Server) bufLen() int {
	if s.ReadBufLen <= 0 {
		return xmlrpc.DefaultReadBufLen
	}
	return s.ReadBufLen
}

func (s *Server) fixedLen() int {
	if s.FixedLen <= 0 {
		return xmlrpc.DefaultStreamerFixedLen
	}
	return s.FixedLen
}

func (s *Server) writeResponse(conn *transport.Conn, body string) error {
	padded, err := xmlrpc.PadToFixedLen(body, s.fixedLen())
	if err != nil {
		// The method response legitimately exceeds the fixed streamer
		// length (e.g. a long getSystemState dump); fall back to the
		// response's actual length rather than failing the call.
		padded = body
	}
	head := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: text/xml\r\nContent-Length: %d\r\nConnection: close\r\n\r\n", len(padded))
	_, werr := conn.Write([]byte(head + padded))
	return werr
}

func (s *Server) writeFault(conn *transport.Conn, err error) error {
	body := xmlrpc.EncodeFault(-1, err.Error())
	head := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: text/xml\r\nContent-Length: %d\r\nConnection: close\r\n\r\n", len(body))
	_, werr := conn.Write([]byte(head + body))
	if werr != nil {
		return werr
	}
	return err
}

const (
	codeError   = int32(-1)
	codeFailure = int32(0)
	codeSuccess = int32(1)
)

func (s *Server) dispatch(method string, params []xmlrpc.Value) (code int32, msg string, value xmlrpc.Value) {
	switch method {
	case "getBusStats":
		return s.getBusStats(params)
	case "getBusInfo":
		return s.getBusInfo(params)
	case "getMasterUri":
		return s.getMasterUri(params)
	case "shutdown":
		return s.shutdown(params)
	case "getPid":
		return s.getPid(params)
	case "getSubscriptions":
		return s.getSubscriptions(params)
	case "getPublications":
		return s.getPublications(params)
	case "paramUpdate":
		return s.paramUpdate(params)
	case "publisherUpdate":
		return s.publisherUpdate(params)
	case "requestTopic":
		return s.requestTopic(params)
	default:
		return codeError, fmt.Sprintf("unknown method %q", method), xmlrpc.Int(0)
	}
}

func (s *Server) getBusStats(_ []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	// No per-message byte/rate accounting is kept at this layer; an
	// empty stats triple is a conformant (if uninformative) answer.
	stats := xmlrpc.ArrayOf(xmlrpc.ArrayOf(), xmlrpc.ArrayOf(), xmlrpc.ArrayOf())
	return codeSuccess, "", stats
}

func (s *Server) getBusInfo(_ []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	var rows []xmlrpc.Value
	idx := int32(0)
	for _, name := range s.Registry.TopicNames() {
		te, err := s.Registry.LookupTopic(name)
		if err != nil {
			continue
		}
		n := s.Registry.CountSessions(name)
		dir := "o"
		if te.Role == registry.RoleSubscriber {
			dir = "i"
		}
		for i := 0; i < n; i++ {
			rows = append(rows, xmlrpc.ArrayOf(
				xmlrpc.Int(idx),
				xmlrpc.String(""),
				xmlrpc.String(dir),
				xmlrpc.String("TCPROS"),
				xmlrpc.String(name),
				xmlrpc.Bool(true),
				xmlrpc.String(""),
			))
			idx++
		}
	}
	return codeSuccess, "", xmlrpc.ArrayOf(rows...)
}

func (s *Server) getMasterUri(_ []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	return codeSuccess, "", xmlrpc.String(s.MasterURI)
}

func (s *Server) shutdown(params []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	reason := ""
	if len(params) >= 2 {
		if str, err := params[1].AsString(); err == nil {
			reason = str
		}
	}
	// Respond before draining so the Master's own RPC call isn't left
	// blocked on a drain it triggered, per spec.md §4.6/§4.8.
	if !s.shutdownOnce {
		s.shutdownOnce = true
		if s.Callbacks.Shutdown != nil {
			go s.Callbacks.Shutdown(reason)
		}
	}
	return codeSuccess, "", xmlrpc.Int(0)
}

func (s *Server) getPid(_ []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	return codeSuccess, "", xmlrpc.Int(int32(os.Getpid()))
}

func (s *Server) getSubscriptions(_ []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	return s.topicList(registry.RoleSubscriber)
}

func (s *Server) getPublications(_ []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	return s.topicList(registry.RolePublisher)
}

func (s *Server) topicList(role registry.Role) (int32, string, xmlrpc.Value) {
	var rows []xmlrpc.Value
	for _, name := range s.Registry.TopicNames() {
		te, err := s.Registry.LookupTopic(name)
		if err != nil || te.Role != role {
			continue
		}
		rows = append(rows, xmlrpc.ArrayOf(xmlrpc.String(te.Name), xmlrpc.String(te.Type.Name)))
	}
	return codeSuccess, "", xmlrpc.ArrayOf(rows...)
}

func (s *Server) paramUpdate(params []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	if len(params) < 3 {
		return codeError, "paramUpdate requires callerid, key, value", xmlrpc.Int(0)
	}
	key, err := params[1].AsString()
	if err != nil {
		return codeError, "malformed key", xmlrpc.Int(0)
	}
	value := params[2]

	if s.Callbacks.ParamUpdate != nil {
		if err := s.Callbacks.ParamUpdate(key, value); err != nil {
			return codeFailure, err.Error(), xmlrpc.Int(0)
		}
	}
	if err := s.Registry.UpdateParam(key, value); err != nil {
		return codeFailure, err.Error(), xmlrpc.Int(0)
	}
	return codeSuccess, "", xmlrpc.Int(0)
}

func (s *Server) publisherUpdate(params []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	if len(params) < 3 {
		return codeError, "publisherUpdate requires callerid, topic, publishers", xmlrpc.Int(0)
	}
	topic, err := params[1].AsString()
	if err != nil {
		return codeError, "malformed topic", xmlrpc.Int(0)
	}
	arr, err := params[2].AsArray()
	if err != nil {
		return codeError, "malformed publisher list", xmlrpc.Int(0)
	}
	publishers := make([]string, 0, len(arr))
	for _, v := range arr {
		str, err := v.AsString()
		if err != nil {
			return codeError, "malformed publisher uri", xmlrpc.Int(0)
		}
		publishers = append(publishers, str)
	}

	if s.Callbacks.PublisherUpdate != nil {
		if err := s.Callbacks.PublisherUpdate(topic, publishers); err != nil {
			return codeFailure, err.Error(), xmlrpc.Int(0)
		}
	}
	return codeSuccess, "", xmlrpc.Int(0)
}

func (s *Server) requestTopic(params []xmlrpc.Value) (int32, string, xmlrpc.Value) {
	if len(params) < 2 {
		return codeFailure, "requestTopic requires callerid, topic, protocols", xmlrpc.Int(0)
	}
	topic, err := params[1].AsString()
	if err != nil {
		return codeError, "malformed topic", xmlrpc.Int(0)
	}

	te, lookupErr := s.Registry.LookupTopic(topic)
	if lookupErr != nil || te.Role != registry.RolePublisher {
		return codeFailure, fmt.Sprintf("topic %q not published", topic), xmlrpc.Int(0)
	}

	wantsTCPROS := len(params) < 3 // no protocol list at all: be lenient
	if len(params) >= 3 {
		protocols, err := params[2].AsArray()
		if err != nil {
			return codeError, "malformed protocol list", xmlrpc.Int(0)
		}
		for _, p := range protocols {
			inner, err := p.AsArray()
			if err != nil || len(inner) == 0 {
				continue
			}
			if name, err := inner[0].AsString(); err == nil && name == "TCPROS" {
				wantsTCPROS = true
			}
		}
	}
	if !wantsTCPROS {
		return codeFailure, "no supported protocol requested", xmlrpc.Int(0)
	}

	result := xmlrpc.ArrayOf(
		xmlrpc.String("TCPROS"),
		xmlrpc.String(s.TCPROSAddr.IP),
		xmlrpc.Int(int32(s.TCPROSAddr.Port)),
	)
	return codeSuccess, "", result
}
