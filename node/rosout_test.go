package node_test

import (
	"context"
	"testing"
	"time"

	"github.com/openrobots-dev/rosnode/logger"
	"github.com/openrobots-dev/rosnode/node"
	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/tcpros"
)

func TestRosoutPublishesToLiveSubscriber(t *testing.T) {
	cfg := testConfig()
	cfg.EnableRosout = true

	n := node.New(cfg, logger.Discard(), node.Callbacks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startErrCh := make(chan error, 1)
	go func() { startErrCh <- n.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for n.State() != node.Running {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for node to reach Running")
		}
		time.Sleep(10 * time.Millisecond)
	}

	received := make(chan []byte, 1)
	callerReg := registry.New()
	wildcard := registry.TypeDescriptor{Name: tcpros.MD5Wildcard, MD5Sum: tcpros.MD5Wildcard}
	go func() {
		_ = tcpros.ConnectSubscriber(n.TCPROSAddr(), "/rosout", "/listener", wildcard, true, callerReg,
			func(sess *tcpros.Session) error {
				body, err := sess.RecvMessage()
				if err != nil {
					return err
				}
				received <- body
				return nil
			})
	}()

	// Give the subscriber session time to register before publishing;
	// a record published before it connects is silently dropped.
	time.Sleep(100 * time.Millisecond)
	n.PublishRosout(node.RosoutWarn, "hello rosout")

	select {
	case body := <-received:
		if len(body) == 0 {
			t.Fatal("expected a non-empty rosout record")
		}
		if body[0] != node.RosoutWarn {
			t.Fatalf("expected severity byte %d, got %d", node.RosoutWarn, body[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rosout record")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := n.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case err := <-startErrCh:
		if err != nil && err != context.Canceled {
			t.Fatalf("Start goroutine returned unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start goroutine never returned after Stop")
	}
}
