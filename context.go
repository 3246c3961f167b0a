/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package lwm2m implements the LwM2M session engine over CoAP: the client
// lifecycle (bootstrap, registration, update, deregistration), the server
// side client registry, object access with TLV payloads, observations and
// the request/response transaction layer with retransmission.
//
// The engine owns no sockets and no goroutines. The host delivers inbound
// datagrams through HandlePacket, sends outbound ones from the send
// callback, and drives every timer by calling Step; see the step scheduler
// for the contract.
package lwm2m

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m/coap"
)

// Session is an opaque handle to a transport session. The host creates it
// in the connect callback and gets it back on every send targeting that
// peer; the engine never looks inside.
type Session interface{}

// ConnectFunc opens a transport session to the server with the given short
// ID. Returning an error leaves the server record unconnected. The engine
// does not retry by itself: a regular server goes to ERROR until the host
// calls RetryRegistration, and a bootstrap attempt moves on to the next
// bootstrap server and fails when none connects.
type ConnectFunc func(shortID uint16) (Session, error)

// SendFunc hands one encoded datagram to the transport. It may block; the
// engine treats it as synchronous.
type SendFunc func(s Session, data []byte) error

// MonitorFunc reports server-side registry changes: client registered
// (2.01), updated (2.04) and removed (2.02, explicit or by lifetime expiry).
type MonitorFunc func(clientID uint16, location string, code coap.Code, payload []byte)

// ResultFunc delivers the outcome of a device-management operation issued
// to a client. A 5.00 code with nil payload means the exchange timed out.
type ResultFunc func(clientID uint16, uri URI, code coap.Code, payload []byte)

// Errors
var (
	ErrSendRequired    = errors.New("send callback is required")
	ErrConnectRequired = errors.New("connect callback is required")
	ErrConfigured      = errors.New("context is already configured")
	ErrNotConfigured   = errors.New("context is not configured")
	ErrEndpointEmpty   = errors.New("endpoint name is empty")
	ErrInvalidBinding  = errors.New("invalid binding mode")
	ErrMSISDNRequired  = errors.New("binding with an SMS leg requires an msisdn")
	ErrMissingObject   = errors.New("mandatory object missing")
	ErrDuplicateObject = errors.New("duplicate object id")
	ErrDuplicateServer = errors.New("duplicate short server id")
	ErrServerNotFound  = errors.New("no such server")
	ErrClientNotFound  = errors.New("no such client")
	ErrClosed          = errors.New("context is closed")
)

// Context is the process-wide engine handle. It is not safe for concurrent
// use; the host serializes HandlePacket, Step and every API call.
type Context struct {
	endpoint string
	binding  Binding
	msisdn   string

	objects []*Object
	backup  map[uint16]ObjectCode

	servers          []*Server
	bootstrapServers []*Server
	bsState          BootstrapState

	transactions []*transaction
	observed     []*observed
	dmObs        []*dmObservation

	clients      []*Client
	lastClientID uint16

	connect ConnectFunc
	send    SendFunc
	monitor MonitorFunc

	nextMID uint16
	rnd     *rand.Rand
	now     func() time.Time
	closed  bool
}

// New creates an engine context. The send callback is mandatory; connect
// may be nil for a pure server host. The initial message ID comes from the
// seed so two contexts started together do not collide.
func New(connect ConnectFunc, send SendFunc) (*Context, error) {
	return NewSeeded(connect, send, time.Now().UnixNano())
}

// NewSeeded is New with caller-supplied entropy for the message ID sequence
// and token generator.
func NewSeeded(connect ConnectFunc, send SendFunc, seed int64) (*Context, error) {
	if send == nil {
		return nil, ErrSendRequired
	}
	rnd := rand.New(rand.NewSource(seed))
	return &Context{
		connect: connect,
		send:    send,
		nextMID: uint16(rnd.Uint32()),
		rnd:     rnd,
		now:     time.Now,
	}, nil
}

// Configure sets the client identity and object registry. It can be called
// once; the object list must contain the Security (0), Server (1) and
// Device (3) objects, and S-family bindings must come with an MSISDN.
func (c *Context) Configure(endpoint string, binding Binding, msisdn string, objects []*Object) error {
	if c.closed {
		return ErrClosed
	}
	if c.endpoint != "" {
		return ErrConfigured
	}
	if endpoint == "" {
		return ErrEndpointEmpty
	}
	if c.connect == nil {
		return ErrConnectRequired
	}
	if !binding.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBinding, binding)
	}
	if binding.RequiresMSISDN() && msisdn == "" {
		return ErrMSISDNRequired
	}

	seen := make(map[uint16]bool)
	for _, o := range objects {
		if seen[o.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateObject, o.ID)
		}
		seen[o.ID] = true
	}
	for _, id := range []uint16{SecurityObjectID, ServerObjectID, DeviceObjectID} {
		if !seen[id] {
			return fmt.Errorf("%w: %d", ErrMissingObject, id)
		}
	}

	c.endpoint = endpoint
	c.binding = binding
	c.msisdn = msisdn
	c.objects = objects
	log.Debugf("Configured endpoint %q, binding %s, %d objects", endpoint, binding, len(objects))
	return nil
}

// SetMonitor installs the server-mode registry monitor
func (c *Context) SetMonitor(monitor MonitorFunc) {
	c.monitor = monitor
}

// AddServer registers a server under its short ID, on the bootstrap list or
// the regular list. The session is opened lazily by the engine.
func (c *Context) AddServer(shortID uint16, bootstrap bool) error {
	if c.closed {
		return ErrClosed
	}
	if c.findServer(shortID) != nil || c.findBootstrapServer(shortID) != nil {
		return fmt.Errorf("%w: %d", ErrDuplicateServer, shortID)
	}
	s := &Server{ShortID: shortID, bootstrap: bootstrap}
	if bootstrap {
		c.bootstrapServers = append(c.bootstrapServers, s)
	} else {
		s.state = StateRegisterRequired
		c.servers = append(c.servers, s)
	}
	return nil
}

// RemoveServer drops a server record from whichever list holds it,
// cancelling the transactions addressed to it
func (c *Context) RemoveServer(shortID uint16) error {
	for i, s := range c.servers {
		if s.ShortID == shortID {
			c.servers = append(c.servers[:i], c.servers[i+1:]...)
			c.cancelTransactions(s)
			if s.session != nil {
				c.dropWatchers(s.session)
			}
			return nil
		}
	}
	for i, s := range c.bootstrapServers {
		if s.ShortID == shortID {
			c.bootstrapServers = append(c.bootstrapServers[:i], c.bootstrapServers[i+1:]...)
			c.cancelTransactions(s)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrServerNotFound, shortID)
}

func (c *Context) findServer(shortID uint16) *Server {
	for _, s := range c.servers {
		if s.ShortID == shortID {
			return s
		}
	}
	return nil
}

func (c *Context) findBootstrapServer(shortID uint16) *Server {
	for _, s := range c.bootstrapServers {
		if s.ShortID == shortID {
			return s
		}
	}
	return nil
}

// Endpoint returns the configured endpoint name
func (c *Context) Endpoint() string {
	return c.endpoint
}

// ServerState reports the registration state for a short server ID
func (c *Context) ServerState(shortID uint16) (ServerState, error) {
	s := c.findServer(shortID)
	if s == nil {
		return StateInitial, fmt.Errorf("%w: %d", ErrServerNotFound, shortID)
	}
	return s.state, nil
}

// ServerLocation returns the registration location path assigned by the server
func (c *Context) ServerLocation(shortID uint16) (string, error) {
	s := c.findServer(shortID)
	if s == nil {
		return "", fmt.Errorf("%w: %d", ErrServerNotFound, shortID)
	}
	return s.location, nil
}

// newMID returns the next message ID
func (c *Context) newMID() uint16 {
	mid := c.nextMID
	c.nextMID++
	return mid
}

// newToken returns a fresh 4-byte token
func (c *Context) newToken() []byte {
	t := make([]byte, 4)
	v := c.rnd.Uint32()
	t[0] = byte(v >> 24)
	t[1] = byte(v >> 16)
	t[2] = byte(v >> 8)
	t[3] = byte(v)
	return t
}

// sendPacket marshals and hands one packet to the transport
func (c *Context) sendPacket(s Session, p *coap.Packet) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	log.Debugf("TX %s %s mid=%d", p.Type, p.Code, p.MessageID)
	return c.send(s, data)
}

// Close tears the context down: objects close first, then registrations are
// released best-effort, observations, clients and transactions last.
// The context cannot be used afterwards.
func (c *Context) Close() {
	if c.closed {
		return
	}

	c.closeObjects()

	for _, s := range c.servers {
		if s.state == StateRegistered || s.state == StateUpdateNeeded || s.state == StateUpdatePending {
			c.deregister(s)
		}
	}
	c.servers = nil
	c.bootstrapServers = nil

	c.observed = nil
	c.dmObs = nil
	c.clients = nil

	// cancelled, not completed: no callbacks fire on close
	c.transactions = nil
	c.closed = true
}
