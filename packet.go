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
	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

// HandlePacket decodes one inbound datagram and routes it: responses to
// their transaction, notifications to their observation, requests by the
// first URI segment (rd, bs or an object ID). Responses go out through the
// send callback; undecodable datagrams are dropped.
func (c *Context) HandlePacket(data []byte, from Session) {
	if c.closed {
		return
	}
	p, err := coap.ParsePacket(data)
	if err != nil {
		log.Warningf("Dropping undecodable packet: %v", err)
		return
	}
	log.Debugf("RX %s %s mid=%d", p.Type, p.Code, p.MessageID)

	if p.Type == coap.Reset {
		if t := c.matchTransaction(p); t != nil {
			c.completeTransaction(t, nil)
		}
		return
	}

	if !p.Code.IsRequest() {
		c.handleResponse(p, from)
		return
	}

	resp := c.handleRequest(p, from)
	if resp == nil {
		return
	}
	if err := c.sendPacket(from, resp); err != nil {
		log.Errorf("Response failed: %v", err)
	}
}

func (c *Context) handleResponse(p *coap.Packet, from Session) {
	if t := c.matchTransaction(p); t != nil {
		if p.Code == coap.Empty && p.Type == coap.Acknowledgement {
			// separate response pending, the real answer follows
			return
		}
		c.completeTransaction(t, p)
		if p.Type == coap.Confirmable {
			c.ackResponse(p, from)
		}
		return
	}
	if p.Observe >= 0 && p.Code.IsSuccess() {
		c.handleNotification(p, from)
		if p.Type == coap.Confirmable {
			c.ackResponse(p, from)
		}
		return
	}
	if p.Type == coap.Confirmable {
		if err := c.sendPacket(from, coap.NewReset(p.MessageID)); err != nil {
			log.Errorf("Reset failed: %v", err)
		}
	}
}

func (c *Context) ackResponse(p *coap.Packet, from Session) {
	if err := c.sendPacket(from, coap.NewAck(p.MessageID)); err != nil {
		log.Errorf("Ack failed: %v", err)
	}
}

// handleRequest dispatches one request and builds its response
func (c *Context) handleRequest(p *coap.Packet, from Session) *coap.Packet {
	if len(p.URIPath) == 0 {
		return c.errorResponse(p, coap.BadRequest)
	}
	switch p.URIPath[0] {
	case registrationRoot:
		return c.handleRegistrationInterface(p, from)
	case bootstrapRoot:
		if p.Code != coap.POST {
			return c.errorResponse(p, coap.MethodNotAllowed)
		}
		return c.response(p, c.handleBootstrapFinish())
	}
	return c.handleObjectAccess(p, from)
}

// response builds an answer matching the request's reliability: piggybacked
// ACK for confirmable requests, fresh NON otherwise
func (c *Context) response(req *coap.Packet, code coap.Code) *coap.Packet {
	var resp *coap.Packet
	if req.Type == coap.Confirmable {
		resp = coap.NewPacket(coap.Acknowledgement, code, req.MessageID)
	} else {
		resp = coap.NewPacket(coap.NonConfirmable, code, c.newMID())
	}
	resp.Token = req.Token
	return resp
}

func (c *Context) errorResponse(req *coap.Packet, code coap.Code) *coap.Packet {
	return c.response(req, code)
}

// handleObjectAccess serves read, write, create, delete, execute and
// observe requests against the local object tree
func (c *Context) handleObjectAccess(p *coap.Packet, from Session) *coap.Packet {
	uri, err := parseSegments(p.URIPath)
	if err != nil {
		return c.errorResponse(p, coap.BadRequest)
	}
	// the Security object is only reachable while a bootstrap server is
	// provisioning
	if uri.ObjectID == SecurityObjectID && !c.bootstrapping() {
		return c.errorResponse(p, coap.Unauthorized)
	}
	o := c.findObject(uri.ObjectID)
	if o == nil {
		return c.errorResponse(p, coap.NotFound)
	}

	switch p.Code {
	case coap.GET:
		return c.handleRead(p, from, uri)
	case coap.PUT:
		return c.handleWrite(p, o, uri)
	case coap.POST:
		if uri.HasResource {
			return c.response(p, o.execute(uri.InstanceID, uri.ResourceID, p.Payload))
		}
		return c.handleCreate(p, o, uri)
	case coap.DELETE:
		if !uri.HasInstance || uri.HasResource {
			return c.errorResponse(p, coap.MethodNotAllowed)
		}
		return c.response(p, o.delete(uri.InstanceID))
	}
	return c.errorResponse(p, coap.MethodNotAllowed)
}

// readURI reads any URI granularity into a TLV payload
func (c *Context) readURI(uri URI) ([]byte, coap.Code) {
	o := c.findObject(uri.ObjectID)
	if o == nil {
		return nil, coap.NotFound
	}
	var items []tlv.Resource
	var code coap.Code
	switch {
	case !uri.HasInstance:
		items, code = o.readObject()
	case !uri.HasResource:
		items, code = o.readInstance(uri.InstanceID, nil)
	default:
		items, code = o.readInstance(uri.InstanceID, []tlv.Resource{{Type: tlv.TypeResource, ID: uri.ResourceID}})
	}
	if code != coap.Content {
		return nil, code
	}
	payload, err := tlv.Marshal(items)
	if err != nil {
		log.Errorf("Encoding %s failed: %v", uri, err)
		return nil, coap.InternalServerError
	}
	return payload, coap.Content
}

func (c *Context) handleRead(p *coap.Packet, from Session, uri URI) *coap.Packet {
	if p.Observe == 1 {
		c.removeWatcher(uri, from, p.Token)
	}
	payload, code := c.readURI(uri)
	if code != coap.Content {
		return c.errorResponse(p, code)
	}
	resp := c.response(p, coap.Content)
	resp.ContentFormat = coap.MediaTypeTLV
	resp.Payload = payload
	if p.Observe == 0 {
		w := c.addWatcher(uri, from, p.Token)
		resp.Observe = int64(w.counter)
	}
	return resp
}

// requestItems decodes a write or create payload into TLV items. A plain
// payload addressed at a single resource becomes that resource's value; a
// single object-instance wrapper is unwrapped.
func requestItems(p *coap.Packet, uri URI) ([]tlv.Resource, bool) {
	if p.ContentFormat != coap.MediaTypeTLV && uri.HasResource {
		return []tlv.Resource{tlv.OpaqueResource(uri.ResourceID, p.Payload)}, true
	}
	items, err := tlv.Parse(p.Payload)
	if err != nil || len(items) == 0 {
		return nil, false
	}
	if len(items) == 1 && items[0].Type == tlv.TypeObjectInstance {
		return items[0].Children, true
	}
	return items, true
}

func (c *Context) handleWrite(p *coap.Packet, o *Object, uri URI) *coap.Packet {
	if !uri.HasInstance {
		return c.errorResponse(p, coap.MethodNotAllowed)
	}
	items, ok := requestItems(p, uri)
	if !ok {
		return c.errorResponse(p, coap.BadRequest)
	}
	return c.response(p, o.write(uri.InstanceID, items, c.bootstrapping()))
}

func (c *Context) handleCreate(p *coap.Packet, o *Object, uri URI) *coap.Packet {
	items, err := tlv.Parse(p.Payload)
	if err != nil || len(items) == 0 {
		return c.errorResponse(p, coap.BadRequest)
	}
	instanceID := uri.InstanceID
	hasID := uri.HasInstance
	if len(items) == 1 && items[0].Type == tlv.TypeObjectInstance {
		if !hasID {
			instanceID = items[0].ID
			hasID = true
		}
		items = items[0].Children
	}
	if !hasID {
		instanceID = o.nextInstanceID()
	}
	code := o.create(instanceID, items)
	resp := c.response(p, code)
	if code == coap.Created {
		resp.SetLocationPath(NewInstanceURI(o.ID, instanceID).String())
	}
	return resp
}
