// Package masterapi implements the typed one-shot call helpers for
// every Master/Slave XMLRPC method a node invokes outward, per spec.md
// §4.6: register/unregister, lookups, param access, and the peer-to-
// peer paramUpdate/publisherUpdate/requestTopic calls. Each call is a
// single HTTP POST that streams its arguments, waits for a response
// within the send/recv timeout, and returns the three-element
// [code, statusMessage, value] response untouched — retries, if any,
// are the caller's responsibility.
package masterapi

import (
	"bufio"
	"fmt"
	"net/http"
	"time"

	"github.com/openrobots-dev/rosnode/transport"
	"github.com/openrobots-dev/rosnode/wire"
	"github.com/openrobots-dev/rosnode/xerr"
	"github.com/openrobots-dev/rosnode/xmlrpc"
)

// Response is the three-element [code, statusMessage, value] every
// Master/Slave method returns, per spec.md §6.
type Response struct {
	Code  int32
	Msg   string
	Value xmlrpc.Value
}

// OK reports whether the call succeeded (code == 1).
func (r Response) OK() bool { return r.Code == 1 }

// Client issues one-shot XMLRPC calls against a Master or peer Slave
// address.
type Client struct {
	CallerID    string
	SendTimeout time.Duration
	RecvTimeout time.Duration
	ReadBufLen  int
}

// New builds a Client identifying itself as callerID.
func New(callerID string, sendTimeout, recvTimeout time.Duration) *Client {
	return &Client{
		CallerID:    callerID,
		SendTimeout: sendTimeout,
		RecvTimeout: recvTimeout,
		ReadBufLen:  xmlrpc.DefaultReadBufLen,
	}
}

// Call issues one XMLRPC method call against addr and returns the
// parsed three-element response. No retry is attempted at this layer.
func (c *Client) Call(addr wire.Address, method string, params ...xmlrpc.Value) (Response, error) {
	conn, err := transport.Dial("tcp", addr.String())
	if err != nil {
		return Response{}, err
	}
	defer conn.Abort()

	if c.SendTimeout > 0 {
		_ = conn.SetWriteTimeout(c.SendTimeout)
	}
	if c.RecvTimeout > 0 {
		_ = conn.SetReadTimeout(c.RecvTimeout)
	}

	body := xmlrpc.EncodeMethodCall(method, params...)
	req := fmt.Sprintf("POST /RPC2 HTTP/1.1\r\nHost: %s\r\nContent-Type: text/xml\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		addr.String(), len(body), body)
	if _, err := conn.Write([]byte(req)); err != nil {
		return Response{}, err
	}

	httpResp, err := http.ReadResponse(bufio.NewReaderSize(conn, c.bufLen()), nil)
	if err != nil {
		return Response{}, xerr.Parse.Error(err)
	}
	defer httpResp.Body.Close()

	rd := xmlrpc.NewReader(httpResp.Body, c.bufLen())
	mr, err := rd.ReadMethodResponse()
	if err != nil {
		return Response{}, err
	}
	if mr.Fault {
		msg, _ := mr.Value.Field("faultString")
		s, _ := msg.AsString()
		return Response{}, xerr.BadParam.Errorf("xmlrpc fault: %s", s)
	}

	arr, err := mr.Value.AsArray()
	if err != nil || len(arr) != 3 {
		return Response{}, xerr.Parse.Errorf("masterapi: malformed response to %s", method)
	}
	code, err := arr[0].AsInt()
	if err != nil {
		return Response{}, xerr.Parse.Errorf("masterapi: non-int response code from %s", method)
	}
	msg, _ := arr[1].AsString()
	return Response{Code: code, Msg: msg, Value: arr[2]}, nil
}

func (c *Client) bufLen() int {
	if c.ReadBufLen <= 0 {
		return xmlrpc.DefaultReadBufLen
	}
	return c.ReadBufLen
}

// --- Master registration API ---

// RegisterPublisher advertises topic with topicType at callerAPI.
func (c *Client) RegisterPublisher(master wire.Address, topic, topicType, callerAPI string) (Response, error) {
	return c.Call(master, "registerPublisher",
		xmlrpc.String(c.CallerID), xmlrpc.String(topic), xmlrpc.String(topicType), xmlrpc.String(callerAPI))
}

// RegisterSubscriber subscribes to topic and returns the current list
// of publisher API URIs.
func (c *Client) RegisterSubscriber(master wire.Address, topic, topicType, callerAPI string) (Response, error) {
	return c.Call(master, "registerSubscriber",
		xmlrpc.String(c.CallerID), xmlrpc.String(topic), xmlrpc.String(topicType), xmlrpc.String(callerAPI))
}

// RegisterService advertises a service at serviceAPI.
func (c *Client) RegisterService(master wire.Address, service, serviceAPI, callerAPI string) (Response, error) {
	return c.Call(master, "registerService",
		xmlrpc.String(c.CallerID), xmlrpc.String(service), xmlrpc.String(serviceAPI), xmlrpc.String(callerAPI))
}

// UnregisterPublisher withdraws a publisher registration.
func (c *Client) UnregisterPublisher(master wire.Address, topic, callerAPI string) (Response, error) {
	return c.Call(master, "unregisterPublisher", xmlrpc.String(c.CallerID), xmlrpc.String(topic), xmlrpc.String(callerAPI))
}

// UnregisterSubscriber withdraws a subscriber registration.
func (c *Client) UnregisterSubscriber(master wire.Address, topic, callerAPI string) (Response, error) {
	return c.Call(master, "unregisterSubscriber", xmlrpc.String(c.CallerID), xmlrpc.String(topic), xmlrpc.String(callerAPI))
}

// UnregisterService withdraws a service registration.
func (c *Client) UnregisterService(master wire.Address, service, serviceAPI string) (Response, error) {
	return c.Call(master, "unregisterService", xmlrpc.String(c.CallerID), xmlrpc.String(service), xmlrpc.String(serviceAPI))
}

// --- Master lookup API ---

// LookupNode returns the XMLRPC URI of a named node.
func (c *Client) LookupNode(master wire.Address, nodeName string) (Response, error) {
	return c.Call(master, "lookupNode", xmlrpc.String(c.CallerID), xmlrpc.String(nodeName))
}

// LookupService returns the ROSRPC URI of a named service.
func (c *Client) LookupService(master wire.Address, service string) (Response, error) {
	return c.Call(master, "lookupService", xmlrpc.String(c.CallerID), xmlrpc.String(service))
}

// GetPublishedTopics returns [topic, type] pairs under subgraph (empty
// string for the whole graph).
func (c *Client) GetPublishedTopics(master wire.Address, subgraph string) (Response, error) {
	return c.Call(master, "getPublishedTopics", xmlrpc.String(c.CallerID), xmlrpc.String(subgraph))
}

// GetTopicTypes returns every known [topic, type] pair.
func (c *Client) GetTopicTypes(master wire.Address) (Response, error) {
	return c.Call(master, "getTopicTypes", xmlrpc.String(c.CallerID))
}

// GetSystemState returns the [publishers, subscribers, services] graph
// snapshot.
func (c *Client) GetSystemState(master wire.Address) (Response, error) {
	return c.Call(master, "getSystemState", xmlrpc.String(c.CallerID))
}

// GetURI returns the Master's own XMLRPC URI.
func (c *Client) GetURI(master wire.Address) (Response, error) {
	return c.Call(master, "getUri", xmlrpc.String(c.CallerID))
}

// GetPid calls getPid on addr (the Master, or any peer Slave).
func (c *Client) GetPid(addr wire.Address) (Response, error) {
	return c.Call(addr, "getPid", xmlrpc.String(c.CallerID))
}

// --- Parameter server API ---

func (c *Client) GetParam(master wire.Address, key string) (Response, error) {
	return c.Call(master, "getParam", xmlrpc.String(c.CallerID), xmlrpc.String(key))
}

func (c *Client) SetParam(master wire.Address, key string, value xmlrpc.Value) (Response, error) {
	return c.Call(master, "setParam", xmlrpc.String(c.CallerID), xmlrpc.String(key), value)
}

func (c *Client) DeleteParam(master wire.Address, key string) (Response, error) {
	return c.Call(master, "deleteParam", xmlrpc.String(c.CallerID), xmlrpc.String(key))
}

func (c *Client) SubscribeParam(master wire.Address, callerAPI, key string) (Response, error) {
	return c.Call(master, "subscribeParam", xmlrpc.String(c.CallerID), xmlrpc.String(callerAPI), xmlrpc.String(key))
}

func (c *Client) UnsubscribeParam(master wire.Address, callerAPI, key string) (Response, error) {
	return c.Call(master, "unsubscribeParam", xmlrpc.String(c.CallerID), xmlrpc.String(callerAPI), xmlrpc.String(key))
}

func (c *Client) HasParam(master wire.Address, key string) (Response, error) {
	return c.Call(master, "hasParam", xmlrpc.String(c.CallerID), xmlrpc.String(key))
}

func (c *Client) SearchParam(master wire.Address, key string) (Response, error) {
	return c.Call(master, "searchParam", xmlrpc.String(c.CallerID), xmlrpc.String(key))
}

// --- Peer-to-peer Slave API calls ---

// ParamUpdate notifies a peer (or ourselves) that key changed to value.
func (c *Client) ParamUpdate(peer wire.Address, key string, value xmlrpc.Value) (Response, error) {
	return c.Call(peer, "paramUpdate", xmlrpc.String(c.CallerID), xmlrpc.String(key), value)
}

// PublisherUpdate notifies a subscriber peer that topic's publisher
// list changed to publishers.
func (c *Client) PublisherUpdate(peer wire.Address, topic string, publishers []string) (Response, error) {
	vals := make([]xmlrpc.Value, len(publishers))
	for i, p := range publishers {
		vals[i] = xmlrpc.String(p)
	}
	return c.Call(peer, "publisherUpdate", xmlrpc.String(c.CallerID), xmlrpc.String(topic), xmlrpc.ArrayOf(vals...))
}

// RequestTopic asks a publisher peer to open a TCPROS session for
// topic, offering the protocol list (typically just [["TCPROS"]]).
func (c *Client) RequestTopic(peer wire.Address, topic string, protocols [][]string) (Response, error) {
	outer := make([]xmlrpc.Value, len(protocols))
	for i, p := range protocols {
		inner := make([]xmlrpc.Value, len(p))
		for j, s := range p {
			inner[j] = xmlrpc.String(s)
		}
		outer[i] = xmlrpc.ArrayOf(inner...)
	}
	return c.Call(peer, "requestTopic", xmlrpc.String(c.CallerID), xmlrpc.String(topic), xmlrpc.ArrayOf(outer...))
}
