package tcpros

import (
	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/transport"
	"github.com/openrobots-dev/rosnode/wire"
	"github.com/openrobots-dev/rosnode/xerr"
)

// PublisherHandler serializes and writes messages onto sess until
// sess.Exit() is observed or a write fails; (de)serialization of any
// particular message type is the application's responsibility, out of
// scope for this module per spec.md §1.
type PublisherHandler func(sess *Session) error

// SubscriberHandler reads and deserializes messages from sess until
// sess.Exit() is observed or a read fails.
type SubscriberHandler func(sess *Session) error

// ServiceHandler processes one request payload and returns the response
// payload to write back, or an error to report as a failure response.
type ServiceHandler func(sess *Session, request []byte) (response []byte, err error)

// validateHandshake checks the peer's md5sum/type against td, honoring
// the "*" wildcard that matches any registered type on either side (in
// the peer's header or in td), per spec.md §4.7's VALIDATE step and §8's
// boundary behavior.
func validateHandshake(h Header, td registry.TypeDescriptor) error {
	if md5 := h[KeyMD5Sum]; md5 != MD5Wildcard && td.MD5Sum != MD5Wildcard && md5 != td.MD5Sum {
		return xerr.Parse.Errorf("md5sum mismatch: got %q want %q", md5, td.MD5Sum)
	}
	if typ := h[KeyType]; typ != MD5Wildcard && td.Name != MD5Wildcard && typ != td.Name {
		return xerr.Parse.Errorf("type mismatch: got %q want %q", typ, td.Name)
	}
	return nil
}

func sendErrorHeader(conn *transport.Conn, reason string) {
	_ = WriteHeader(conn, Header{KeyError: reason})
}

// ServePublisher runs the publisher-accept state machine on an already
// accepted connection: WAIT_HDR → PARSE_HDR → VALIDATE → SEND_HDR →
// STREAM_LOOP → CLOSED. The session is registered under the topic name
// for the duration of the stream loop and removed on every exit path.
func ServePublisher(conn *transport.Conn, reg *registry.Registry, callerID string, handler PublisherHandler) error {
	h, err := ReadHeader(conn)
	if err != nil {
		conn.Abort()
		return err
	}
	return ServePublisherWithHeader(conn, reg, callerID, h, handler)
}

// ServePublisherWithHeader runs the publisher-accept state machine from
// PARSE_HDR onward, for a caller that already read the handshake header
// off conn to decide routing (e.g. the node supervisor dispatching a
// freshly accepted TCPROS connection to the publisher or service
// handler based on which handshake key is present).
func ServePublisherWithHeader(conn *transport.Conn, reg *registry.Registry, callerID string, h Header, handler PublisherHandler) error {
	defer conn.Abort()

	name, ok := h[KeyTopic]
	if !ok {
		sendErrorHeader(conn, "missing topic header")
		return xerr.Parse.Errorf("tcpros: publisher handshake missing %q", KeyTopic)
	}

	te, lookupErr := reg.LookupTopic(name)
	if lookupErr != nil || te.Role != registry.RolePublisher {
		sendErrorHeader(conn, "unknown topic "+name)
		return xerr.MapMiss.Errorf("tcpros: topic %q not published", name)
	}

	if err := validateHandshake(h, te.Type); err != nil {
		sendErrorHeader(conn, err.Error())
		return err
	}

	sess := NewSession(RolePublisher, name, conn)
	sess.CallerID = h[KeyCallerID]
	sess.Header = h
	sess.TypeDesc = te.Type
	sess.Persistent = IsTrue01(h[KeyPersistent])

	resp := Header{
		KeyCallerID: callerID,
		KeyTopic:    name,
		KeyType:     te.Type.Name,
		KeyMD5Sum:   te.Type.MD5Sum,
		KeyLatching: Bool01(te.Latched),
	}
	if err := WriteHeader(conn, resp); err != nil {
		return err
	}

	reg.AddSession(name, sess.ID, sess)
	defer reg.RemoveSession(name, sess.ID)

	runErr := handler(sess)
	sess.SetLastError(runErr)
	return runErr
}

// ConnectSubscriber runs the subscriber-connect state machine: CONNECT
// → SEND_HDR → RECV_HDR → VALIDATE → STREAM_LOOP → CLOSED. addr is the
// publisher's TCPROS address returned by a prior requestTopic call.
func ConnectSubscriber(addr wire.Address, name, callerID string, want registry.TypeDescriptor, tcpNoDelay bool, reg *registry.Registry, handler SubscriberHandler) error {
	conn, err := transport.Dial("tcp", addr.String())
	if err != nil {
		return err
	}
	defer conn.Abort()

	req := Header{
		KeyCallerID:   callerID,
		KeyTopic:      name,
		KeyType:       want.Name,
		KeyMD5Sum:     want.MD5Sum,
		KeyTCPNoDelay: Bool01(tcpNoDelay),
	}
	if want.Definition != "" {
		req[KeyMessageDefinition] = want.Definition
	}
	if err := WriteHeader(conn, req); err != nil {
		return err
	}

	h, err := ReadHeader(conn)
	if err != nil {
		return err
	}
	if reason, ok := h[KeyError]; ok {
		return xerr.Parse.Errorf("tcpros: publisher refused handshake: %s", reason)
	}
	if err := validateHandshake(h, want); err != nil {
		return err
	}

	sess := NewSession(RoleSubscriber, name, conn)
	sess.CallerID = h[KeyCallerID]
	sess.Header = h
	sess.TypeDesc = want

	reg.AddSession(name, sess.ID, sess)
	defer reg.RemoveSession(name, sess.ID)

	runErr := handler(sess)
	sess.SetLastError(runErr)
	return runErr
}

// ServeService runs the service-server state machine: WAIT_HDR →
// PARSE_HDR → (probe ? VALIDATE_AND_CLOSE : SEND_HDR → REQ_LOOP) →
// CLOSED. For persistent sessions REQ_LOOP repeats until the peer
// closes or sess.Exit() is observed.
func ServeService(conn *transport.Conn, reg *registry.Registry, callerID string, handler ServiceHandler) error {
	h, err := ReadHeader(conn)
	if err != nil {
		conn.Abort()
		return err
	}
	return ServeServiceWithHeader(conn, reg, callerID, h, handler)
}

// ServeServiceWithHeader runs the service-server state machine from
// PARSE_HDR onward, for a caller that already read the handshake
// header off conn to decide routing.
func ServeServiceWithHeader(conn *transport.Conn, reg *registry.Registry, callerID string, h Header, handler ServiceHandler) error {
	defer conn.Abort()

	name, ok := h[KeyService]
	if !ok {
		sendErrorHeader(conn, "missing service header")
		return xerr.Parse.Errorf("tcpros: service handshake missing %q", KeyService)
	}

	se, lookupErr := reg.LookupService(name)
	if lookupErr != nil || se.Role != registry.RoleServer {
		sendErrorHeader(conn, "unknown service "+name)
		return xerr.MapMiss.Errorf("tcpros: service %q not published", name)
	}

	if err := validateHandshake(h, se.Type); err != nil {
		sendErrorHeader(conn, err.Error())
		return err
	}

	if IsTrue01(h[KeyProbe]) {
		// VALIDATE_AND_CLOSE: handshake already validated above; a
		// successful probe closes without entering the request loop.
		return nil
	}

	resp := Header{
		KeyCallerID: callerID,
		KeyType:     se.Type.Name,
		KeyMD5Sum:   se.Type.MD5Sum,
	}
	if err := WriteHeader(conn, resp); err != nil {
		return err
	}

	sess := NewSession(RoleServiceServer, name, conn)
	sess.CallerID = h[KeyCallerID]
	sess.Header = h
	sess.TypeDesc = se.Type
	sess.Persistent = IsTrue01(h[KeyPersistent])

	reg.AddSession(name, sess.ID, sess)
	defer reg.RemoveSession(name, sess.ID)

	for {
		if sess.Exit() {
			return nil
		}
		reqBody, err := wire.ReadString(conn)
		if err != nil {
			sess.SetLastError(err)
			return err
		}

		respBody, handlerErr := handler(sess, reqBody)
		if writeErr := writeServiceResponse(conn, respBody, handlerErr); writeErr != nil {
			sess.SetLastError(writeErr)
			return writeErr
		}

		if !sess.Persistent {
			return nil
		}
	}
}

// writeServiceResponse frames a service response as ok-byte(1) ||
// length || body on success, or ok-byte(0) || length || error-bytes on
// failure, per spec.md §6.
func writeServiceResponse(conn *transport.Conn, body []byte, handlerErr error) error {
	if handlerErr == nil {
		if _, err := conn.Write([]byte{1}); err != nil {
			return err
		}
		return wire.WriteString(conn, body)
	}
	if _, err := conn.Write([]byte{0}); err != nil {
		return err
	}
	return wire.WriteString(conn, []byte(handlerErr.Error()))
}

// Caller is a live service-caller session supporting the (REQ → RESP)*
// loop of spec.md §4.7; it stays open across multiple Call invocations
// when the handshake negotiated a persistent session.
type Caller struct {
	sess *Session
	conn *transport.Conn
}

// DialService runs CONNECT → SEND_HDR → RECV_HDR and returns a Caller
// ready for one or more Call invocations.
func DialService(addr wire.Address, name, callerID string, reqType, respType registry.TypeDescriptor, persistent bool) (*Caller, error) {
	conn, err := transport.Dial("tcp", addr.String())
	if err != nil {
		return nil, err
	}

	req := Header{
		KeyCallerID:     callerID,
		KeyService:      name,
		KeyType:         reqType.Name,
		KeyMD5Sum:       reqType.MD5Sum,
		KeyRequestType:  reqType.Name,
		KeyResponseType: respType.Name,
		KeyPersistent:   Bool01(persistent),
	}
	if err := WriteHeader(conn, req); err != nil {
		conn.Abort()
		return nil, err
	}

	h, err := ReadHeader(conn)
	if err != nil {
		conn.Abort()
		return nil, err
	}
	if reason, ok := h[KeyError]; ok {
		conn.Abort()
		return nil, xerr.Parse.Errorf("tcpros: service refused handshake: %s", reason)
	}

	sess := NewSession(RoleServiceCaller, name, conn)
	sess.CallerID = h[KeyCallerID]
	sess.Header = h
	sess.TypeDesc = reqType
	sess.Persistent = persistent

	return &Caller{sess: sess, conn: conn}, nil
}

// Call sends one request payload and returns the response payload, or
// the error the remote service reported.
func (c *Caller) Call(request []byte) ([]byte, error) {
	if c.sess.Exit() {
		return nil, xerr.Forced.Errorf("tcpros: caller session closed")
	}
	if err := wire.WriteString(c.conn, request); err != nil {
		c.sess.SetLastError(err)
		return nil, err
	}

	var ok [1]byte
	if err := c.conn.RecvFull(ok[:]); err != nil {
		c.sess.SetLastError(err)
		return nil, err
	}

	body, err := wire.ReadString(c.conn)
	if err != nil {
		c.sess.SetLastError(err)
		return nil, err
	}

	if ok[0] == 0 {
		callErr := xerr.BadParam.Errorf("%s", string(body))
		c.sess.SetLastError(callErr)
		return nil, callErr
	}
	return body, nil
}

// Close ends the caller session, releasing the underlying socket.
func (c *Caller) Close() error {
	c.sess.RequestExit()
	return nil
}
