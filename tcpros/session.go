package tcpros

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/transport"
	"github.com/openrobots-dev/rosnode/wire"
)

// Role is which of the four TCPROS flows a Session is running.
type Role uint8

const (
	RolePublisher Role = iota
	RoleSubscriber
	RoleServiceServer
	RoleServiceCaller
)

// Session is one live TCPROS connection and its associated state
// (spec.md §3's CS): the connection, the topic/service it belongs to,
// a cooperative exit flag, and a by-value last-error slot set once on
// the way out. It is owned by the pool worker servicing it for its
// entire lifetime.
type Session struct {
	ID   string
	Role Role
	Name string // topic or service name

	Conn       *transport.Conn
	CallerID   string
	Header     Header
	TypeDesc   registry.TypeDescriptor
	Persistent bool

	exit atomic.Bool

	errMu   sync.Mutex
	lastErr error
}

// NewSession wraps conn into a fresh Session, assigning a random id used
// for registry bookkeeping and log correlation.
func NewSession(role Role, name string, conn *transport.Conn) *Session {
	return &Session{
		ID:   uuid.NewString(),
		Role: role,
		Name: name,
		Conn: conn,
	}
}

// Exit reports whether the session has been asked to terminate.
func (s *Session) Exit() bool {
	return s.exit.Load()
}

// RequestExit sets the cooperative exit flag and aborts the underlying
// socket — per spec.md §4.7, "setting the flag plus aborting the
// socket is the only supported way to interrupt a blocked handler".
func (s *Session) RequestExit() {
	s.exit.Store(true)
	_ = s.Conn.Abort()
}

// SetLastError records the final observed error for this session,
// overwriting any previous value — the session's error slot is "the
// last observed error, set once on the way out" per spec.md §9.
func (s *Session) SetLastError(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.lastErr = err
}

// LastError returns the most recently recorded error, if any.
func (s *Session) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// SendMessage writes one length-prefixed message payload to the peer,
// per spec.md §6: a 4-byte little-endian length followed by the
// serialized body. The body's own serialization is the application
// handler's responsibility — this module only frames it.
func (s *Session) SendMessage(body []byte) error {
	return wire.WriteString(s.Conn, body)
}

// RecvMessage reads one length-prefixed message payload from the peer.
func (s *Session) RecvMessage() ([]byte, error) {
	return wire.ReadString(s.Conn)
}
