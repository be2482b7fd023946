package node

import (
	"bytes"
	"fmt"
	"time"

	"github.com/openrobots-dev/rosnode/registry"
	"github.com/openrobots-dev/rosnode/tcpros"
	"github.com/openrobots-dev/rosnode/wire"
)

// rosoutTopic is the well-known aggregated-log topic every ROS node
// optionally publishes to, per spec.md §4.8 boot step 7.
const rosoutTopic = "/rosout"

// rosoutType mirrors the real rosgraph_msgs/Log message (name and
// md5sum), so a genuine rosout listener (e.g. rqt_console) can
// handshake against this topic without this node knowing anything
// else about that message's full field layout.
var rosoutType = registry.TypeDescriptor{Name: "rosgraph_msgs/Log", MD5Sum: "acffd30cd6b6de30f120938c17c593fb"}

// Severity levels, matching rosgraph_msgs/Log's own constants.
const (
	RosoutDebug byte = 1
	RosoutInfo  byte = 2
	RosoutWarn  byte = 4
	RosoutError byte = 8
	RosoutFatal byte = 16
)

// rosoutSub is one live TCPROS subscriber to /rosout: the session plus
// a buffered outbox PublishRosout writes into.
type rosoutSub struct {
	sess *tcpros.Session
	ch   chan []byte
}

// advertiseRosoutLocally registers the rosout type and topic in the
// registry, a purely local, always-fast operation kept separate from
// the Master registration so a Master that's slow or unreachable never
// blocks boot over what is, in spec.md §4.8's terms, an optional log
// channel.
func (n *Node) advertiseRosoutLocally() error {
	if err := n.Registry.RegisterType(rosoutType); err != nil {
		return err
	}
	return n.Registry.AdvertiseTopic(registry.TopicEntry{
		Name: rosoutTopic,
		Type: rosoutType,
		Role: registry.RolePublisher,
	})
}

// registerRosoutWithMaster announces the /rosout publication to the
// configured Master. Run in its own goroutine from boot: a dead or
// slow Master degrades rosout to a local-only log rather than failing
// the whole node.
func (n *Node) registerRosoutWithMaster() {
	rpcStart := time.Now()
	resp, err := n.Master.RegisterPublisher(n.Config.MasterAddress(), rosoutTopic, rosoutType.Name, n.slaveURI())
	n.recordRPC("registerPublisher", rpcStart)
	if err != nil || !resp.OK() {
		n.warn("rosout: registerPublisher at master failed: ", err)
	}
}

// slaveURI renders this node's own Slave API address as the
// "http://host:port/" form the Master RPCs expect.
func (n *Node) slaveURI() string {
	return "http://" + n.XMLRPCAddr().String() + "/"
}

// rosoutPublisherHandler is the built-in TopicPublisher for /rosout:
// it holds the session open, relaying whatever PublishRosout enqueues
// until the session is asked to exit. Unlike application-defined
// publisher handlers, this one isn't supplied through Callbacks since
// /rosout has no application driver of its own.
func (n *Node) rosoutPublisherHandler(sess *tcpros.Session) error {
	sub := &rosoutSub{sess: sess, ch: make(chan []byte, 32)}

	n.rosoutMu.Lock()
	n.rosoutSubs[sess.ID] = sub
	n.rosoutMu.Unlock()
	defer func() {
		n.rosoutMu.Lock()
		delete(n.rosoutSubs, sess.ID)
		n.rosoutMu.Unlock()
	}()

	for {
		select {
		case body := <-sub.ch:
			if err := sess.SendMessage(body); err != nil {
				return err
			}
		case <-time.After(500 * time.Millisecond):
		}
		if sess.Exit() {
			return nil
		}
	}
}

// PublishRosout broadcasts one log record to every live /rosout
// subscriber. A full outbox drops the record rather than blocking the
// caller — a stuck rosout subscriber must never stall node logging.
func (n *Node) PublishRosout(level byte, msg string) {
	if !n.Config.EnableRosout {
		return
	}
	body := encodeRosoutRecord(level, n.Config.NodeName, msg)

	n.rosoutMu.Lock()
	defer n.rosoutMu.Unlock()
	for _, sub := range n.rosoutSubs {
		select {
		case sub.ch <- body:
		default:
		}
	}
}

// encodeRosoutRecord frames a minimal log record: a severity byte
// followed by the length-prefixed node name and message. This is a
// local wire shape for this module's own use, not the full
// rosgraph_msgs/Log layout (header/file/function/line/topics) — a
// real rosout listener needs the application's own message
// serialization, out of scope here per spec.md §1.
func encodeRosoutRecord(level byte, name, msg string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(level)
	_ = wire.WriteString(&buf, []byte(name))
	_ = wire.WriteString(&buf, []byte(msg))
	return buf.Bytes()
}

// warn logs a warning through the node's logger and, if rosout is
// enabled, also broadcasts it as a WARN record.
func (n *Node) warn(args ...interface{}) {
	n.Log.Warn(args...)
	if n.Config.EnableRosout {
		n.PublishRosout(RosoutWarn, fmt.Sprint(args...))
	}
}
