package node_test

import (
	"context"
	"testing"
	"time"

	"github.com/openrobots-dev/rosnode/config"
	"github.com/openrobots-dev/rosnode/logger"
	"github.com/openrobots-dev/rosnode/masterapi"
	"github.com/openrobots-dev/rosnode/node"
	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/xerr"
	"github.com/openrobots-dev/rosnode/xmlrpc"
)

var chatterType = registry.TypeDescriptor{Name: "std_msgs/String", MD5Sum: "992ce8a1687cec8c8bd883ec73ca41d1"}

func testConfig() config.NodeConfig {
	cfg := config.Default()
	cfg.NodeName = "/talker"
	// Port 0 lets the OS pick a free ephemeral port for each listener;
	// addrFromListener reports the one actually bound.
	cfg.XMLRPCListenIP = "127.0.0.1"
	cfg.XMLRPCListenPort = 0
	cfg.TCPROSListenIP = "127.0.0.1"
	cfg.TCPROSListenPort = 0
	return cfg
}

func TestNodeLifecycleStartStop(t *testing.T) {
	published := make(chan struct{}, 1)
	n := node.New(testConfig(), logger.Discard(), node.Callbacks{
		RegisterStaticTypes: func(reg *registry.Registry) error {
			return reg.RegisterType(chatterType)
		},
		PublishTopics: func(reg *registry.Registry) error {
			defer func() { published <- struct{}{} }()
			return reg.AdvertiseTopic(registry.TopicEntry{Name: "/chatter", Type: chatterType, Role: registry.RolePublisher})
		},
	})

	if n.State() != node.Uninit {
		t.Fatalf("expected Uninit before Start, got %s", n.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startErrCh := make(chan error, 1)
	go func() { startErrCh <- n.Start(ctx) }()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for PublishTopics callback")
	}

	if !n.IsRunning() {
		t.Fatalf("expected node to be running")
	}
	if n.State() != node.Running {
		t.Fatalf("expected Running, got %s", n.State())
	}

	client := masterapi.New("/caller", 2*time.Second, 2*time.Second)
	resp, err := client.Call(n.XMLRPCAddr(), "requestTopic",
		xmlrpc.String("/caller"), xmlrpc.String("/chatter"),
		xmlrpc.ArrayOf(xmlrpc.ArrayOf(xmlrpc.String("TCPROS"))))
	if err != nil {
		t.Fatalf("requestTopic over live XMLRPC listener: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected requestTopic success, got code %d msg %q", resp.Code, resp.Msg)
	}
	arr, err := resp.Value.AsArray()
	if err != nil || len(arr) != 3 {
		t.Fatalf("expected [protocol, host, port] triple, got %v", resp.Value)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := n.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if n.State() != node.Shutdown {
		t.Fatalf("expected Shutdown after Stop, got %s", n.State())
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

func TestNodeBootFailureUnwindsToUninit(t *testing.T) {
	bootErr := xerr.BadParam.Errorf("refuses to register")
	n := node.New(testConfig(), logger.Discard(), node.Callbacks{
		RegisterStaticTypes: func(reg *registry.Registry) error {
			return bootErr
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := n.Start(ctx); err == nil {
		t.Fatal("expected boot failure to surface from Start")
	}
	if n.State() != node.Uninit {
		t.Fatalf("expected Uninit after a failed boot, got %s", n.State())
	}
}
