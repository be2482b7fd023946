// Package transport implements the connection abstraction: stream
// sockets with per-direction timeouts, half-close, graceful vs abort
// close, and the recv-full/send-full contract the TCPROS and XMLRPC
// engines are built on. Grounded on the corpus's socket package shape
// (ConnState, a Context-like handle exposing IsConnected/LocalHost/
// RemoteHost/Read/Write, ErrorFilter for expected close-time errors).
package transport

import (
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openrobots-dev/rosnode/xerr"
)

// State is the connection's lifecycle state.
type State int32

const (
	Closed State = iota
	Bound
	Listening
	Connected
	HalfClosed
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Bound:
		return "bound"
	case Listening:
		return "listening"
	case Connected:
		return "connected"
	case HalfClosed:
		return "half-closed"
	default:
		return "unknown"
	}
}

// Conn wraps a net.Conn with the recv-full/send-full contract and a
// race-free state query, so IsValid is truthful across a concurrent
// close from another goroutine (e.g. the supervisor aborting a blocked
// accept during drain).
type Conn struct {
	nc    net.Conn
	state atomic.Int32
}

// NewConn wraps an already-connected/accepted net.Conn.
func NewConn(nc net.Conn) *Conn {
	c := &Conn{nc: nc}
	c.state.Store(int32(Connected))
	return c
}

// IsValid reports whether the connection is still usable for I/O.
func (c *Conn) IsValid() bool {
	return State(c.state.Load()) == Connected
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// LocalAddr / RemoteAddr expose the underlying socket endpoints.
func (c *Conn) LocalAddr() net.Addr  { return c.nc.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// SetReadTimeout / SetWriteTimeout set per-direction deadlines. A zero
// duration disables the corresponding deadline.
func (c *Conn) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return c.nc.SetReadDeadline(time.Time{})
	}
	return c.nc.SetReadDeadline(time.Now().Add(d))
}

func (c *Conn) SetWriteTimeout(d time.Duration) error {
	if d <= 0 {
		return c.nc.SetWriteDeadline(time.Time{})
	}
	return c.nc.SetWriteDeadline(time.Now().Add(d))
}

// RecvFull reads exactly len(buf) bytes, looping until satisfied or an
// error occurs. A deadline expiry surfaces as Timeout; the socket
// remains valid on timeout and may be retried.
func (c *Conn) RecvFull(buf []byte) error {
	_, err := io.ReadFull(c.nc, buf)
	return c.classify(err)
}

// SendFull writes exactly len(buf) bytes, looping until satisfied or an
// error occurs.
func (c *Conn) SendFull(buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := c.nc.Write(buf[n:])
		n += m
		if err != nil {
			return c.classify(err)
		}
	}
	return nil
}

// Read / Write satisfy io.ReadWriter for callers that don't need the
// full-transfer guarantee (e.g. the XMLRPC bounded-buffer reader).
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.nc.Read(p)
	if err != nil {
		return n, c.classify(err)
	}
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.nc.Write(p)
	if err != nil {
		return n, c.classify(err)
	}
	return n, nil
}

func (c *Conn) classify(err error) error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return xerr.Timeout.Error(err)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return xerr.EOF.Error(err)
	}
	return xerr.ConnReset.Error(err)
}

// CloseGraceful half-closes the write side, then drains and discards
// any remaining input before fully closing, letting the peer observe
// EOF and finish its own writes without a reset.
func (c *Conn) CloseGraceful() error {
	c.state.Store(int32(HalfClosed))
	if hc, ok := c.nc.(interface{ CloseWrite() error }); ok {
		_ = hc.CloseWrite()
	}
	_, _ = io.Copy(io.Discard, c.nc)
	return c.Abort()
}

// Abort hard-closes the socket immediately, the only supported way to
// unblock a handler parked in a blocking read/write.
func (c *Conn) Abort() error {
	c.state.Store(int32(Closed))
	return c.nc.Close()
}

// ErrorFilter drops the noisy, expected errors a clean shutdown produces
// (e.g. "use of closed network connection") so shutdown-time logging
// isn't polluted with expected closes.
func ErrorFilter(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "use of closed network connection") {
		return nil
	}
	return err
}
