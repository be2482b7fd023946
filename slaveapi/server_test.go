package slaveapi_test

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/slaveapi"
	"github.com/openrobots-dev/rosnode/transport"
	"github.com/openrobots-dev/rosnode/wire"
	"github.com/openrobots-dev/rosnode/xerr"
	"github.com/openrobots-dev/rosnode/xmlrpc"
)

var stringType = registry.TypeDescriptor{Name: "std_msgs/String", MD5Sum: "992ce8a1687cec8c8bd883ec73ca41d1"}

func call(t testing.TB, srv *slaveapi.Server, method string, params ...xmlrpc.Value) (int32, string, xmlrpc.Value) {
	t.Helper()

	ln, err := transport.Listen("tcp", "127.0.0.1:0", 1)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		done <- srv.ServeConn(conn)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	body := xmlrpc.EncodeMethodCall(method, params...)
	req := fmt.Sprintf("POST / HTTP/1.1\r\nHost: x\r\nContent-Type: text/xml\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
	if _, err := client.Write([]byte(req)); err != nil {
		t.Fatalf("write request: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("serve: %v", err)
	}

	httpResp, err := http.ReadResponse(bufio.NewReader(client), nil)
	if err != nil {
		t.Fatalf("read http response: %v", err)
	}
	defer httpResp.Body.Close()

	rd := xmlrpc.NewReader(httpResp.Body, 0)
	resp, err := rd.ReadMethodResponse()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	arr, err := resp.Value.AsArray()
	if err != nil || len(arr) != 3 {
		t.Fatalf("expected 3-element response, got %v (%v)", resp.Value, err)
	}
	code, _ := arr[0].AsInt()
	msg, _ := arr[1].AsString()
	return code, msg, arr[2]
}

func newServer(t *testing.T) (*slaveapi.Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	if err := reg.RegisterType(stringType); err != nil {
		t.Fatalf("register type: %v", err)
	}
	srv := slaveapi.New(reg, "/mynode", "http://master:11311/", wire.Address{IP: "127.0.0.1", Port: 44444}, slaveapi.Callbacks{}, nil)
	return srv, reg
}

func TestGetPid(t *testing.T) {
	srv, _ := newServer(t)
	code, _, v := call(t, srv, "getPid", xmlrpc.String("/caller"))
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	if _, err := v.AsInt(); err != nil {
		t.Fatalf("expected int pid: %v", err)
	}
}

func TestGetMasterUri(t *testing.T) {
	srv, _ := newServer(t)
	code, _, v := call(t, srv, "getMasterUri", xmlrpc.String("/caller"))
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	if s, _ := v.AsString(); s != "http://master:11311/" {
		t.Fatalf("unexpected master uri %q", s)
	}
}

func TestRequestTopicUnknownTopicFails(t *testing.T) {
	srv, _ := newServer(t)
	code, _, _ := call(t, srv, "requestTopic",
		xmlrpc.String("/caller"), xmlrpc.String("/nope"),
		xmlrpc.ArrayOf(xmlrpc.ArrayOf(xmlrpc.String("TCPROS"))))
	if code != 0 {
		t.Fatalf("expected code 0 for unknown topic, got %d", code)
	}
}

func TestRequestTopicSucceeds(t *testing.T) {
	srv, reg := newServer(t)
	if err := reg.AdvertiseTopic(registry.TopicEntry{Name: "/chatter", Type: stringType, Role: registry.RolePublisher}); err != nil {
		t.Fatalf("advertise: %v", err)
	}

	code, _, v := call(t, srv, "requestTopic",
		xmlrpc.String("/caller"), xmlrpc.String("/chatter"),
		xmlrpc.ArrayOf(xmlrpc.ArrayOf(xmlrpc.String("TCPROS"))))
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	arr, err := v.AsArray()
	if err != nil || len(arr) != 3 {
		t.Fatalf("expected [TCPROS, host, port], got %v", v)
	}
	proto, _ := arr[0].AsString()
	if proto != "TCPROS" {
		t.Fatalf("expected TCPROS protocol, got %q", proto)
	}
	port, _ := arr[2].AsInt()
	if port != 44444 {
		t.Fatalf("expected port 44444, got %d", port)
	}
}

func TestParamUpdateUnknownKeyLeavesRegistryUnchanged(t *testing.T) {
	srv, reg := newServer(t)
	code, _, _ := call(t, srv, "paramUpdate", xmlrpc.String("/caller"), xmlrpc.String("/unknown"), xmlrpc.String("v"))
	if code != 0 {
		t.Fatalf("expected code 0 for unknown param key, got %d", code)
	}
	if err := reg.UpdateParam("/unknown", "v"); !xerr.Is(err, xerr.MapMiss) {
		t.Fatalf("expected /unknown to stay absent from the registry, got %v", err)
	}
}

func TestShutdownRespondsBeforeCallbackReturns(t *testing.T) {
	called := make(chan string, 1)
	release := make(chan struct{})
	defer close(release)
	reg := registry.New()
	// The callback blocks until the test returns, so a response that
	// arrives at all was written before the callback returned.
	srv := slaveapi.New(reg, "/mynode", "http://master:11311/", wire.Address{IP: "127.0.0.1", Port: 44444}, slaveapi.Callbacks{
		Shutdown: func(reason string) {
			called <- reason
			<-release
		},
	}, nil)

	code, _, _ := call(t, srv, "shutdown", xmlrpc.String("/master"), xmlrpc.String("reboot"))
	if code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	select {
	case reason := <-called:
		if reason != "reboot" {
			t.Fatalf("unexpected reason %q", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("shutdown callback never ran")
	}
}
