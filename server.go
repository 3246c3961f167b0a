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
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/corelink"
)

// Client is one registered client as seen by the server engine
type Client struct {
	ID       uint16
	Endpoint string
	Session  Session
	Binding  Binding
	MSISDN   string

	Lifetime  time.Duration
	EndOfLife time.Time
	Objects   []corelink.Link
}

// Location returns the registration location assigned to the client
func (cl *Client) Location() string {
	return "/" + registrationRoot + "/" + strconv.FormatUint(uint64(cl.ID), 10)
}

// Clients lists the currently registered clients
func (c *Context) Clients() []*Client {
	return append([]*Client(nil), c.clients...)
}

func (c *Context) findClient(id uint16) *Client {
	for _, cl := range c.clients {
		if cl.ID == id {
			return cl
		}
	}
	return nil
}

func (c *Context) findClientByEndpoint(endpoint string) *Client {
	for _, cl := range c.clients {
		if cl.Endpoint == endpoint {
			return cl
		}
	}
	return nil
}

// handleRegister processes POST /rd
func (c *Context) handleRegister(p *coap.Packet, from Session) *coap.Packet {
	endpoint, ok := p.Query("ep")
	if !ok || endpoint == "" {
		return c.errorResponse(p, coap.BadRequest)
	}
	lifetime := defaultLifetime
	if lt, ok := p.Query("lt"); ok {
		seconds, err := strconv.ParseInt(lt, 10, 32)
		if err != nil || seconds <= 0 {
			return c.errorResponse(p, coap.BadRequest)
		}
		lifetime = time.Duration(seconds) * time.Second
	}
	binding := BindingU
	if b, ok := p.Query("b"); ok {
		binding = Binding(b)
		if !binding.Valid() {
			return c.errorResponse(p, coap.BadRequest)
		}
	}
	msisdn, _ := p.Query("sms")
	if binding.RequiresMSISDN() && msisdn == "" {
		return c.errorResponse(p, coap.BadRequest)
	}
	links, err := corelink.Parse(p.Payload)
	if err != nil || len(links) == 0 {
		return c.errorResponse(p, coap.BadRequest)
	}

	// a re-registration under a live endpoint name replaces the record
	if old := c.findClientByEndpoint(endpoint); old != nil {
		log.Infof("Client %q re-registered, replacing record %d", endpoint, old.ID)
		c.dropClient(old)
	}

	c.lastClientID++
	now := c.now()
	cl := &Client{
		ID:        c.lastClientID,
		Endpoint:  endpoint,
		Session:   from,
		Binding:   binding,
		MSISDN:    msisdn,
		Lifetime:  lifetime,
		EndOfLife: now.Add(lifetime),
		Objects:   links,
	}
	c.clients = append(c.clients, cl)
	log.Infof("Client %q registered as %s, lifetime %s", endpoint, cl.Location(), lifetime)

	if c.monitor != nil {
		c.monitor(cl.ID, cl.Location(), coap.Created, p.Payload)
	}

	resp := c.response(p, coap.Created)
	resp.SetLocationPath(cl.Location())
	return resp
}

// handleRegistrationUpdate processes POST /rd/<id>
func (c *Context) handleRegistrationUpdate(p *coap.Packet, cl *Client) *coap.Packet {
	if lt, ok := p.Query("lt"); ok {
		seconds, err := strconv.ParseInt(lt, 10, 32)
		if err != nil || seconds <= 0 {
			return c.errorResponse(p, coap.BadRequest)
		}
		cl.Lifetime = time.Duration(seconds) * time.Second
	}
	if len(p.Payload) > 0 {
		links, err := corelink.Parse(p.Payload)
		if err != nil || len(links) == 0 {
			return c.errorResponse(p, coap.BadRequest)
		}
		cl.Objects = links
	}
	cl.EndOfLife = c.now().Add(cl.Lifetime)
	log.Debugf("Client %q refreshed registration until %s", cl.Endpoint, cl.EndOfLife)

	if c.monitor != nil {
		c.monitor(cl.ID, cl.Location(), coap.Changed, p.Payload)
	}

	return c.response(p, coap.Changed)
}

// handleDeregister processes DELETE /rd/<id>
func (c *Context) handleDeregister(p *coap.Packet, cl *Client) *coap.Packet {
	log.Infof("Client %q deregistered", cl.Endpoint)
	c.dropClient(cl)
	if c.monitor != nil {
		c.monitor(cl.ID, cl.Location(), coap.Deleted, nil)
	}
	return c.response(p, coap.Deleted)
}

// handleRegistrationInterface routes requests under /rd
func (c *Context) handleRegistrationInterface(p *coap.Packet, from Session) *coap.Packet {
	if len(p.URIPath) == 1 {
		if p.Code != coap.POST {
			return c.errorResponse(p, coap.MethodNotAllowed)
		}
		return c.handleRegister(p, from)
	}
	if len(p.URIPath) != 2 {
		return c.errorResponse(p, coap.NotFound)
	}
	id, err := strconv.ParseUint(p.URIPath[1], 10, 16)
	if err != nil {
		return c.errorResponse(p, coap.NotFound)
	}
	cl := c.findClient(uint16(id))
	if cl == nil {
		return c.errorResponse(p, coap.NotFound)
	}
	switch p.Code {
	case coap.POST:
		return c.handleRegistrationUpdate(p, cl)
	case coap.DELETE:
		return c.handleDeregister(p, cl)
	}
	return c.errorResponse(p, coap.MethodNotAllowed)
}

// dropClient removes a client record together with the transactions and
// observations addressed to it
func (c *Context) dropClient(cl *Client) {
	for i, o := range c.clients {
		if o == cl {
			c.clients = append(c.clients[:i], c.clients[i+1:]...)
			break
		}
	}
	c.cancelTransactions(cl)
	c.dropClientObservations(cl)
}

// sweepClients removes clients whose lifetime ran out and keeps the step
// timeout below the next expiry
func (c *Context) sweepClients(now time.Time, timeout *time.Duration) {
	for _, cl := range append([]*Client(nil), c.clients...) {
		if !now.Before(cl.EndOfLife) {
			log.Infof("Client %q expired", cl.Endpoint)
			c.dropClient(cl)
			if c.monitor != nil {
				c.monitor(cl.ID, cl.Location(), coap.Deleted, nil)
			}
			continue
		}
		shrinkTimeout(timeout, cl.EndOfLife.Sub(now))
	}
}
