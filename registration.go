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

package lwm2m

import (
	"bytes"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/corelink"
	"github.com/facebook/lwm2m/tlv"
)

// registrations are refreshed after this share of the lifetime has passed
const updateFraction = 0.8

// defaultLifetime applies when the Server object carries no lifetime for a
// short server ID
const defaultLifetime = 86400 * time.Second

// ServerState is the registration state of one configured server
type ServerState uint8

// server states
const (
	StateInitial ServerState = iota
	StateRegisterRequired
	StateRegistering
	StateRegistered
	StateUpdateNeeded
	StateUpdatePending
	StateDeregistered
	StateError
)

func (s ServerState) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateRegisterRequired:
		return "REGISTER_REQUIRED"
	case StateRegistering:
		return "REGISTERING"
	case StateRegistered:
		return "REGISTERED"
	case StateUpdateNeeded:
		return "UPDATE_NEEDED"
	case StateUpdatePending:
		return "UPDATE_PENDING"
	case StateDeregistered:
		return "DEREGISTERED"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Server is one configured server, regular or bootstrap. The session handle
// is nil until the first successful connect and is then kept for the record
// lifetime.
type Server struct {
	ShortID   uint16
	bootstrap bool

	session      Session
	state        ServerState
	location     string
	lastMID      uint16
	registeredAt time.Time
	lifetime     time.Duration
	lastPayload  []byte
	forceUpdate  bool
}

// connectServer opens the transport session if there is none yet
func (c *Context) connectServer(s *Server) error {
	if s.session != nil {
		return nil
	}
	session, err := c.connect(s.ShortID)
	if err != nil {
		return fmt.Errorf("connecting to server %d: %w", s.ShortID, err)
	}
	s.session = session
	return nil
}

// registrationPayload builds the CoRE link listing of every non-Security
// object instance
func (c *Context) registrationPayload() []byte {
	var links []corelink.Link
	for _, o := range c.objects {
		if o.ID == SecurityObjectID {
			continue
		}
		ids := o.Code.InstanceIDs()
		if len(ids) == 0 {
			links = append(links, corelink.Link{ObjectID: o.ID})
			continue
		}
		for _, id := range ids {
			links = append(links, corelink.Link{ObjectID: o.ID, InstanceID: id, HasInstance: true})
		}
	}
	return corelink.Build(links)
}

// serverLifetime reads the lifetime for a short server ID out of the Server
// object, falling back to the default when no instance announces it
func (c *Context) serverLifetime(shortID uint16) time.Duration {
	o := c.findObject(ServerObjectID)
	if o == nil {
		return defaultLifetime
	}
	for _, id := range o.Code.InstanceIDs() {
		items, code := o.readInstance(id, []tlv.Resource{{ID: 0}, {ID: 1}})
		if code != coap.Content || len(items) != 2 {
			continue
		}
		sid, err := tlv.DecodeInt(items[0].Value)
		if err != nil || uint16(sid) != shortID {
			continue
		}
		lifetime, err := tlv.DecodeInt(items[1].Value)
		if err != nil || lifetime <= 0 {
			break
		}
		return time.Duration(lifetime) * time.Second
	}
	return defaultLifetime
}

// register sends the initial POST /rd for one server
func (c *Context) register(s *Server) {
	if err := c.connectServer(s); err != nil {
		log.Errorf("Registration: %v", err)
		s.state = StateError
		return
	}
	s.lifetime = c.serverLifetime(s.ShortID)
	payload := c.registrationPayload()

	t := c.newTransaction(s.session, s, coap.POST)
	t.pkt.SetURIPath("/" + registrationRoot)
	query := fmt.Sprintf("ep=%s&lt=%d&b=%s", c.endpoint, int64(s.lifetime.Seconds()), c.binding)
	if c.binding.RequiresMSISDN() {
		query += "&sms=" + c.msisdn
	}
	t.pkt.SetURIQuery(query)
	t.pkt.ContentFormat = coap.MediaTypeLinkFormat
	t.pkt.Payload = payload
	t.callback = func(resp *coap.Packet) {
		c.handleRegistrationReply(s, payload, resp)
	}

	s.state = StateRegistering
	s.lastMID = t.mid
	c.enqueueTransaction(t)
	log.Infof("Registering endpoint %q with server %d", c.endpoint, s.ShortID)
}

func (c *Context) handleRegistrationReply(s *Server, payload []byte, resp *coap.Packet) {
	if s.state != StateRegistering {
		return
	}
	if resp == nil || resp.Code != coap.Created {
		if resp != nil {
			log.Errorf("Registration with server %d refused: %s", s.ShortID, resp.Code)
		}
		s.state = StateError
		return
	}
	s.location = resp.LocationPathString()
	s.registeredAt = c.now()
	s.lastPayload = payload
	s.state = StateRegistered
	log.Infof("Registered with server %d at %s", s.ShortID, s.location)
}

// UpdateRegistration schedules a registration update for one server, or for
// every registered server when shortID is zero. The update goes out on the
// next step; with force the full link listing is sent even if the object
// list did not change.
func (c *Context) UpdateRegistration(shortID uint16, force bool) error {
	if shortID == 0 {
		for _, s := range c.servers {
			if s.state == StateRegistered {
				s.state = StateUpdateNeeded
				s.forceUpdate = force
			}
		}
		return nil
	}
	s := c.findServer(shortID)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrServerNotFound, shortID)
	}
	if s.state != StateRegistered && s.state != StateUpdateNeeded {
		return fmt.Errorf("server %d is %s, not registered", shortID, s.state)
	}
	s.state = StateUpdateNeeded
	s.forceUpdate = force
	return nil
}

// RetryRegistration puts a failed server back on the registration path.
// Records stay in ERROR until the host decides to retry; the new attempt
// goes out on the next step.
func (c *Context) RetryRegistration(shortID uint16) error {
	if c.closed {
		return ErrClosed
	}
	s := c.findServer(shortID)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrServerNotFound, shortID)
	}
	switch s.state {
	case StateError, StateDeregistered:
		s.location = ""
		s.lastPayload = nil
		s.state = StateRegisterRequired
		return nil
	case StateRegistering, StateUpdatePending:
		return fmt.Errorf("server %d is %s, an exchange is in flight", shortID, s.state)
	}
	return fmt.Errorf("server %d is %s, nothing to retry", shortID, s.state)
}

// update sends POST to the registration location; the body carries the new
// link listing only when the object list changed
func (c *Context) update(s *Server, force bool) {
	payload := c.registrationPayload()
	t := c.newTransaction(s.session, s, coap.POST)
	t.pkt.SetURIPath(s.location)
	if force || !bytes.Equal(payload, s.lastPayload) {
		t.pkt.ContentFormat = coap.MediaTypeLinkFormat
		t.pkt.Payload = payload
	}
	t.callback = func(resp *coap.Packet) {
		c.handleUpdateReply(s, payload, resp)
	}

	s.state = StateUpdatePending
	s.lastMID = t.mid
	c.enqueueTransaction(t)
	log.Debugf("Updating registration with server %d", s.ShortID)
}

func (c *Context) handleUpdateReply(s *Server, payload []byte, resp *coap.Packet) {
	if s.state != StateUpdatePending {
		return
	}
	if resp == nil || resp.Code != coap.Changed {
		if resp != nil {
			log.Errorf("Registration update with server %d refused: %s", s.ShortID, resp.Code)
		}
		s.state = StateError
		return
	}
	s.registeredAt = c.now()
	s.lastPayload = payload
	s.state = StateRegistered
	log.Debugf("Registration with server %d refreshed", s.ShortID)
}

// deregister issues a best-effort DELETE on the registration location
func (c *Context) deregister(s *Server) {
	if s.session == nil || s.location == "" {
		s.state = StateDeregistered
		return
	}
	t := c.newTransaction(s.session, s, coap.DELETE)
	t.pkt.SetURIPath(s.location)
	t.callback = func(resp *coap.Packet) {
		if resp == nil {
			log.Debugf("Deregistration from server %d got no reply", s.ShortID)
		}
	}
	s.state = StateDeregistered
	c.enqueueTransaction(t)
	log.Infof("Deregistered from server %d", s.ShortID)
}

// stepRegistrations drives the per-server state machine: initial
// registrations and scheduled updates
func (c *Context) stepRegistrations(now time.Time, timeout *time.Duration) {
	for _, s := range c.servers {
		switch s.state {
		case StateRegisterRequired:
			c.register(s)
		case StateUpdateNeeded:
			c.update(s, s.forceUpdate)
			s.forceUpdate = false
		case StateRegistered:
			deadline := s.registeredAt.Add(time.Duration(float64(s.lifetime) * updateFraction))
			if !now.Before(deadline) {
				c.update(s, false)
				continue
			}
			shrinkTimeout(timeout, deadline.Sub(now))
		}
	}
}
