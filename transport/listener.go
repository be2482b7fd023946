package transport

import (
	"net"

	"github.com/openrobots-dev/rosnode/xerr"
)

// Listener wraps a net.Listener with the abort-unblocks-accept pattern:
// closing the listener from another goroutine is the only supported way
// to interrupt a blocked Accept. This is portable and avoids
// platform-specific async cancellation, mirroring how the TCPROS and
// XMLRPC listeners are woken during drain.
type Listener struct {
	nl net.Listener
}

// Listen binds and listens on addr ("host:port"). backlog is accepted
// for API parity with the specification but net.Listen does not expose
// it directly; callers that need an explicit backlog should construct
// their own net.ListenConfig.
func Listen(network, addr string, _ int) (*Listener, error) {
	nl, err := net.Listen(network, addr)
	if err != nil {
		return nil, xerr.SysError.Error(err)
	}
	return &Listener{nl: nl}, nil
}

// Accept blocks until a connection arrives or the listener is closed.
func (l *Listener) Accept() (*Conn, error) {
	nc, err := l.nl.Accept()
	if err != nil {
		return nil, xerr.ConnRefused.Error(err)
	}
	return NewConn(nc), nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

// Close unblocks any in-flight Accept and releases the listening socket.
func (l *Listener) Close() error {
	return l.nl.Close()
}

// Dial opens a client connection to addr.
func Dial(network, addr string) (*Conn, error) {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return nil, xerr.ConnRefused.Error(err)
	}
	return NewConn(nc), nil
}
