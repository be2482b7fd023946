package transport_test

import (
	"testing"
	"time"

	"github.com/openrobots-dev/rosnode/transport"
)

func TestSendFullRecvFullRoundTrip(t *testing.T) {
	ln, err := transport.Listen("tcp", "127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		defer c.Abort()
		buf := make([]byte, 5)
		if err := c.RecvFull(buf); err != nil {
			serverDone <- err
			return
		}
		serverDone <- c.SendFull(buf)
	}()

	client, err := transport.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Abort()

	if err := client.SendFull([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}

	echo := make([]byte, 5)
	if err := client.RecvFull(echo); err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(echo) != "hello" {
		t.Fatalf("expected echo of hello, got %q", echo)
	}

	if err := <-serverDone; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func TestIsValidAfterAbort(t *testing.T) {
	ln, err := transport.Listen("tcp", "127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Abort()
		}
	}()

	c, err := transport.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if !c.IsValid() {
		t.Fatalf("expected connection valid immediately after connect")
	}
	c.Abort()
	if c.IsValid() {
		t.Fatalf("expected connection invalid after abort")
	}
}

func TestReadTimeoutLeavesSocketValid(t *testing.T) {
	ln, err := transport.Listen("tcp", "127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		time.Sleep(200 * time.Millisecond)
		c.Abort()
	}()

	c, err := transport.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Abort()

	c.SetReadTimeout(10 * time.Millisecond)
	buf := make([]byte, 1)
	if err := c.RecvFull(buf); err == nil {
		t.Fatalf("expected timeout error")
	}
	if !c.IsValid() {
		t.Fatalf("expected socket to remain valid after a timed-out op")
	}
}

func TestAcceptUnblockedByClose(t *testing.T) {
	ln, err := transport.Listen("tcp", "127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = ln.Accept()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	ln.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("closing the listener did not unblock Accept")
	}
}

func TestErrorFilterDropsExpectedCloseErrors(t *testing.T) {
	ln, err := transport.Listen("tcp", "127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()

	_, acceptErr := ln.Accept()
	if acceptErr == nil {
		t.Fatalf("expected accept error after close")
	}
	if err := transport.ErrorFilter(acceptErr); err != nil {
		t.Fatalf("expected ErrorFilter to drop the close error, got %v", err)
	}
}
