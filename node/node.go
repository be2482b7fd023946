// Package node implements the top-level node lifecycle: boot →
// listeners up → pools up → advertise/subscribe at Master → running →
// shutdown drains in the reverse order, per spec.md §4.8.
package node

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/openrobots-dev/rosnode/config"
	"github.com/openrobots-dev/rosnode/logger"
	"github.com/openrobots-dev/rosnode/masterapi"
	"github.com/openrobots-dev/rosnode/mempool"
	"github.com/openrobots-dev/rosnode/pool"
	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/runner"
	"github.com/openrobots-dev/rosnode/slaveapi"
	"github.com/openrobots-dev/rosnode/tcpros"
	"github.com/openrobots-dev/rosnode/transport"
	"github.com/openrobots-dev/rosnode/wire"
	"github.com/openrobots-dev/rosnode/xerr"
	"github.com/openrobots-dev/rosnode/xmlrpc"
)

// State is the supervisor's lifecycle state, per spec.md §4.8.
type State int32

const (
	Uninit State = iota
	Starting
	Running
	Draining
	Shutdown
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Callbacks is the application's handler surface, per spec.md §6: every
// boot/drain step that touches application-level topic/service/param
// state is delegated here rather than baked into the supervisor.
type Callbacks struct {
	ErrPrintf func(format string, args ...interface{})

	RegisterStaticTypes func(reg *registry.Registry) error

	PublishTopics     func(reg *registry.Registry) error
	UnpublishTopics   func(reg *registry.Registry) error
	SubscribeTopics   func(reg *registry.Registry) error
	UnsubscribeTopics func(reg *registry.Registry) error

	PublishServices   func(reg *registry.Registry) error
	UnpublishServices func(reg *registry.Registry) error

	SubscribeParams   func(reg *registry.Registry) error
	UnsubscribeParams func(reg *registry.Registry) error

	// ParamUpdate rejects with xerr.BadParam on a type/range error,
	// which the Slave dispatcher maps to response code 0.
	ParamUpdate func(key string, value xmlrpc.Value) error

	// TopicPublisher/TopicSubscriber route a newly accepted/connected
	// TCPROS session to the application's serialize/deserialize loop.
	TopicPublisher  func(name string) tcpros.PublisherHandler
	TopicSubscriber func(name string) tcpros.SubscriberHandler
	ServiceHandler  func(name string) tcpros.ServiceHandler
}

// Node is the node supervisor: the owned root object holding the
// registry, memory pool, listeners, and thread pools every other
// component is built from (spec.md §9's re-architecture of the
// original's global singletons into an owned root with shared
// references).
type Node struct {
	Config    config.NodeConfig
	Registry  *registry.Registry
	Mem       *mempool.Pool
	Log       logger.Logger
	Master    *masterapi.Client
	Callbacks Callbacks

	state atomic.Int32

	xmlrpcLn *transport.Listener
	tcprosLn *transport.Listener

	slavePool  *pool.Pool
	serverPool *pool.Pool
	clientPool *pool.Pool

	slave *slaveapi.Server

	lifecycle runner.StartStop
	metrics   *metrics

	rosoutMu   sync.Mutex
	rosoutSubs map[string]*rosoutSub

	bootDone chan error
}

// New builds a Node from cfg, ready to Start. cb's zero-valued fields are
// treated as no-ops, so a minimal application only needs to set the
// callbacks it actually uses.
func New(cfg config.NodeConfig, log logger.Logger, cb Callbacks) *Node {
	if log == nil {
		log = logger.Discard()
	}
	n := &Node{
		Config:     cfg,
		Registry:   registry.New(),
		Mem:        mempool.New(cfg.RPCReadBufLen, cfg.XMLRPCPoolSize+cfg.TCPROSServerPool+cfg.TCPROSClientPool),
		Log:        log,
		Master:     masterapi.New(cfg.NodeName, cfg.XMLRPCSendTimeout, cfg.XMLRPCRecvTimeout),
		Callbacks:  cb,
		rosoutSubs: make(map[string]*rosoutSub),
	}
	if cfg.EnableMetrics {
		n.metrics = newMetrics()
	}
	n.lifecycle = runner.New(n.boot, n.drain)
	return n
}

// State returns the supervisor's current lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

func (n *Node) setState(s State) {
	n.state.Store(int32(s))
}

// XMLRPCAddr returns the bound XMLRPC listener address, valid once
// Running.
func (n *Node) XMLRPCAddr() wire.Address {
	if n.xmlrpcLn == nil {
		return n.Config.XMLRPCAddress()
	}
	return addrFromListener(n.xmlrpcLn, n.Config.XMLRPCListenIP)
}

// TCPROSAddr returns the bound TCPROS listener address, valid once
// Running.
func (n *Node) TCPROSAddr() wire.Address {
	if n.tcprosLn == nil {
		return n.Config.TCPROSAddress()
	}
	return addrFromListener(n.tcprosLn, n.Config.TCPROSListenIP)
}

// addrFromListener reports the actually-bound port of l (useful when
// the configured port is 0, letting the OS pick one), keeping the
// configured host since a wildcard bind address isn't dialable by
// peers.
func addrFromListener(l *transport.Listener, host string) wire.Address {
	_, portStr, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return wire.Address{IP: host}
	}
	port, _ := strconv.Atoi(portStr)
	return wire.Address{IP: host, Port: uint16(port)}
}

// parseXMLRPCURI parses a "http://host:port/" Slave API URI into a
// wire.Address.
func parseXMLRPCURI(uri string) (wire.Address, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return wire.Address{}, xerr.Parse.Error(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return wire.Address{}, xerr.Parse.Error(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return wire.Address{}, xerr.Parse.Error(err)
	}
	return wire.Address{IP: host, Port: uint16(port)}, nil
}

// Start runs the boot sequence and blocks until RUNNING is reached or a
// step fails. RUNNING is reached only when every step succeeds; a
// failed step unwinds the steps completed so far in reverse order and
// returns to UNINIT. The node keeps running in the background after
// Start returns; cancelling ctx or calling Stop drains it.
func (n *Node) Start(ctx context.Context) error {
	done := make(chan error, 1)
	n.bootDone = done

	if err := n.lifecycle.Start(ctx); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop runs the drain sequence: unsubscribe/unpublish at the
// application level, abort listeners, join pools, free the registry.
func (n *Node) Stop(ctx context.Context) error {
	return n.lifecycle.Stop(ctx)
}

// IsRunning reports whether the node is between Start and Stop.
func (n *Node) IsRunning() bool {
	return n.lifecycle.IsRunning()
}

func (n *Node) boot(ctx context.Context) error {
	n.setState(Starting)

	// Step 5 ahead of step 4: the Slave-RPC server needs the TCPROS
	// listener's bound address to answer requestTopic, so that
	// listener is stood up first even though it is numbered after the
	// XMLRPC listener in spec.md §4.8.
	tcprosLn, err := transport.Listen("tcp", n.Config.TCPROSAddress().String(), n.Config.TCPROSBacklog)
	if err != nil {
		n.setState(Uninit)
		return n.failBoot(xerr.SysError.Error(err))
	}
	n.tcprosLn = tcprosLn
	n.serverPool = pool.New(n.Config.TCPROSServerPool)
	n.clientPool = pool.New(n.Config.TCPROSClientPool)

	// Step 4: XMLRPC listener + Slave-RPC pool.
	xmlrpcLn, err := transport.Listen("tcp", n.Config.XMLRPCAddress().String(), n.Config.XMLRPCBacklog)
	if err != nil {
		n.unwindListeners()
		n.setState(Uninit)
		return n.failBoot(xerr.SysError.Error(err))
	}
	n.xmlrpcLn = xmlrpcLn
	n.slavePool = pool.New(n.Config.XMLRPCPoolSize)

	n.slave = slaveapi.New(n.Registry, n.Config.NodeName, n.Config.MasterAddress().String(), n.TCPROSAddr(), slaveapi.Callbacks{
		Shutdown:        func(reason string) { n.shutdownRequested(reason) },
		ParamUpdate:     n.Callbacks.ParamUpdate,
		PublisherUpdate: n.publisherUpdate,
	}, n.Log)

	// Step 3: static types, before anything advertises using them.
	if n.Callbacks.RegisterStaticTypes != nil {
		if err := n.Callbacks.RegisterStaticTypes(n.Registry); err != nil {
			n.unwindListeners()
			n.setState(Uninit)
			return n.failBoot(err)
		}
	}

	go n.acceptLoop(ctx, n.xmlrpcLn, n.slavePool, n.serveSlaveConn)
	go n.acceptLoop(ctx, n.tcprosLn, n.serverPool, n.serveTCPROSConn)
	if n.metrics != nil {
		go n.sampleMetrics(ctx)
	}

	// Step 6: application advertise/subscribe at Master.
	var merr *multierror.Error
	if n.Callbacks.PublishTopics != nil {
		if err := n.Callbacks.PublishTopics(n.Registry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if n.Callbacks.SubscribeTopics != nil {
		if err := n.Callbacks.SubscribeTopics(n.Registry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if n.Callbacks.PublishServices != nil {
		if err := n.Callbacks.PublishServices(n.Registry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if n.Callbacks.SubscribeParams != nil {
		if err := n.Callbacks.SubscribeParams(n.Registry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		n.unwindListeners()
		n.setState(Uninit)
		return n.failBoot(xerr.BadParam.Error(err))
	}

	// Step 7: publish the /rosout log topic if configured. The local
	// registry entry must exist before RUNNING so a concurrent
	// requestTopic already sees it; the Master registration itself runs
	// in the background, see registerRosoutWithMaster.
	if n.Config.EnableRosout {
		if err := n.advertiseRosoutLocally(); err != nil {
			n.unwindListeners()
			n.setState(Uninit)
			return n.failBoot(err)
		}
		go n.registerRosoutWithMaster()
	}

	n.setState(Running)
	n.bootDone <- nil

	<-ctx.Done()
	if n.State() == Running {
		return n.drain(context.Background())
	}
	return nil
}

// failBoot reports a boot failure to a caller blocked in Start and
// returns err unchanged, so it can be used directly in a return
// statement.
func (n *Node) failBoot(err error) error {
	n.bootDone <- err
	return err
}

func (n *Node) unwindListeners() {
	if n.xmlrpcLn != nil {
		n.xmlrpcLn.Close()
	}
	if n.tcprosLn != nil {
		n.tcprosLn.Close()
	}
	if n.slavePool != nil {
		n.slavePool.Close()
	}
	if n.serverPool != nil {
		n.serverPool.Close()
	}
	if n.clientPool != nil {
		n.clientPool.Close()
	}
}

func (n *Node) drain(ctx context.Context) error {
	n.setState(Draining)

	var merr *multierror.Error

	// Step 1b: withdraw the /rosout publication, reverse of boot step 7.
	if n.Config.EnableRosout {
		rpcStart := time.Now()
		_, _ = n.Master.UnregisterPublisher(n.Config.MasterAddress(), rosoutTopic, n.slaveURI())
		n.recordRPC("unregisterPublisher", rpcStart)
		_ = n.Registry.UnadvertiseTopic(rosoutTopic)
	}

	// Step 2: application unsubscribe/unpublish, reverse order of boot
	// step 6.
	if n.Callbacks.UnsubscribeParams != nil {
		if err := n.Callbacks.UnsubscribeParams(n.Registry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if n.Callbacks.UnpublishServices != nil {
		if err := n.Callbacks.UnpublishServices(n.Registry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if n.Callbacks.UnsubscribeTopics != nil {
		if err := n.Callbacks.UnsubscribeTopics(n.Registry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if n.Callbacks.UnpublishTopics != nil {
		if err := n.Callbacks.UnpublishTopics(n.Registry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	// Step 3: abort listener sockets, wake every pool worker. Closing
	// the listener unblocks any in-flight Accept directly in Go;
	// earlier uROS implementations relied on a self-addressed getPid
	// call for the same effect since their accept loop couldn't be
	// interrupted any other way (spec.md §9 "preserve the pattern").
	var eg errgroup.Group
	eg.Go(func() error { return transport.ErrorFilter(n.closeListener(n.xmlrpcLn)) })
	eg.Go(func() error { return transport.ErrorFilter(n.closeListener(n.tcprosLn)) })
	eg.Go(func() error { n.closePool(n.slavePool); return nil })
	eg.Go(func() error { n.closePool(n.serverPool); return nil })
	eg.Go(func() error { n.closePool(n.clientPool); return nil })
	if err := eg.Wait(); err != nil {
		merr = multierror.Append(merr, err)
	}

	// Step 5: free the registry, transition to SHUTDOWN. Errors during
	// drain are logged but never stop drain, per spec.md §7.
	if err := merr.ErrorOrNil(); err != nil {
		n.warn("node: errors during drain: ", err)
	}
	n.Registry = registry.New()
	n.setState(Shutdown)
	return nil
}

func (n *Node) closeListener(l *transport.Listener) error {
	if l == nil {
		return nil
	}
	return l.Close()
}

func (n *Node) closePool(p *pool.Pool) {
	if p == nil {
		return
	}
	p.Close()
}

func (n *Node) acceptLoop(ctx context.Context, ln *transport.Listener, p *pool.Pool, handle func(conn *transport.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || n.State() != Running {
				return
			}
			continue
		}
		c := conn
		if err := p.Dispatch(ctx, func(ctx context.Context) { handle(c) }); err != nil {
			c.Abort()
		}
	}
}

func (n *Node) serveSlaveConn(conn *transport.Conn) {
	defer conn.Abort()
	if err := n.slave.ServeConn(conn); err != nil {
		n.warn("slaveapi: ", err)
	}
}

func (n *Node) serveTCPROSConn(conn *transport.Conn) {
	h, err := tcpros.ReadHeader(conn)
	if err != nil {
		conn.Abort()
		return
	}
	// Re-frame the already-consumed header by replaying the decision
	// through the same engine entry points; each accepts a fresh
	// connection, so route based on which handshake key is present
	// rather than re-reading it twice.
	switch {
	case h[tcpros.KeyTopic] != "":
		n.serveTopicSession(conn, h)
	case h[tcpros.KeyService] != "":
		n.serveServiceSession(conn, h)
	default:
		conn.Abort()
	}
}

func (n *Node) serveTopicSession(conn *transport.Conn, h tcpros.Header) {
	name := h[tcpros.KeyTopic]
	te, err := n.Registry.LookupTopic(name)
	if err != nil || te.Role != registry.RolePublisher {
		conn.Abort()
		return
	}
	var handler tcpros.PublisherHandler
	if name == rosoutTopic {
		handler = n.rosoutPublisherHandler
	} else if n.Callbacks.TopicPublisher != nil {
		handler = n.Callbacks.TopicPublisher(name)
	}
	if handler == nil {
		conn.Abort()
		return
	}
	if err := tcpros.ServePublisherWithHeader(conn, n.Registry, n.Config.NodeName, h, handler); err != nil {
		n.warn("tcpros publisher: ", err)
	}
}

func (n *Node) serveServiceSession(conn *transport.Conn, h tcpros.Header) {
	name := h[tcpros.KeyService]
	se, err := n.Registry.LookupService(name)
	if err != nil || se.Role != registry.RoleServer {
		conn.Abort()
		return
	}
	var handler tcpros.ServiceHandler
	if n.Callbacks.ServiceHandler != nil {
		handler = n.Callbacks.ServiceHandler(name)
	}
	if handler == nil {
		conn.Abort()
		return
	}
	if err := tcpros.ServeServiceWithHeader(conn, n.Registry, n.Config.NodeName, h, handler); err != nil {
		n.warn("tcpros service: ", err)
	}
}

func (n *Node) publisherUpdate(topic string, publishers []string) error {
	if n.Callbacks.TopicSubscriber == nil {
		return nil
	}
	// Reconnecting to the new publisher set is the subscriber driver's
	// responsibility; the supervisor only routes the notification.
	go n.reconnectSubscriber(topic, publishers)
	return nil
}

func (n *Node) reconnectSubscriber(topic string, publishers []string) {
	for _, uri := range publishers {
		addr, err := parseXMLRPCURI(uri)
		if err != nil {
			continue
		}
		rpcStart := time.Now()
		resp, err := n.Master.RequestTopic(addr, topic, [][]string{{"TCPROS"}})
		n.recordRPC("requestTopic", rpcStart)
		if err != nil || !resp.OK() {
			continue
		}
		arr, err := resp.Value.AsArray()
		if err != nil || len(arr) != 3 {
			continue
		}
		host, _ := arr[1].AsString()
		port, _ := arr[2].AsInt()

		te, err := n.Registry.LookupTopic(topic)
		if err != nil {
			continue
		}
		handler := n.Callbacks.TopicSubscriber(topic)
		if handler == nil {
			continue
		}
		_ = n.clientPool.Dispatch(context.Background(), func(ctx context.Context) {
			_ = tcpros.ConnectSubscriber(wire.Address{IP: host, Port: uint16(port)}, topic, n.Config.NodeName, te.Type, true, n.Registry, handler)
		})
	}
}

func (n *Node) shutdownRequested(reason string) {
	if n.Callbacks.ErrPrintf != nil {
		n.Callbacks.ErrPrintf("shutdown requested: %s", reason)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = n.Stop(ctx)
}
