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
	"errors"
	"fmt"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

// ErrNotObserved is returned when cancelling an observation that was never
// placed
var ErrNotObserved = errors.New("uri is not observed on this client")

// dmRequest builds a confirmable request addressed at one registered client
func (c *Context) dmRequest(clientID uint16, uri URI, code coap.Code, cb ResultFunc) (*transaction, *Client, error) {
	if c.closed {
		return nil, nil, ErrClosed
	}
	cl := c.findClient(clientID)
	if cl == nil {
		return nil, nil, fmt.Errorf("%w: %d", ErrClientNotFound, clientID)
	}
	t := c.newTransaction(cl.Session, cl, code)
	t.pkt.SetURIPath(uri.String())
	if cb != nil {
		t.callback = func(resp *coap.Packet) {
			if resp == nil {
				cb(clientID, uri, coap.InternalServerError, nil)
				return
			}
			cb(clientID, uri, resp.Code, resp.Payload)
		}
	}
	return t, cl, nil
}

// DMRead issues a read on a registered client; the callback receives the
// TLV payload on 2.05
func (c *Context) DMRead(clientID uint16, uri URI, cb ResultFunc) error {
	t, _, err := c.dmRequest(clientID, uri, coap.GET, cb)
	if err != nil {
		return err
	}
	c.enqueueTransaction(t)
	return nil
}

// DMWrite issues a write of TLV items on a registered client
func (c *Context) DMWrite(clientID uint16, uri URI, items []tlv.Resource, cb ResultFunc) error {
	if !uri.HasInstance {
		return fmt.Errorf("%w: write needs an instance", ErrInvalidURI)
	}
	payload, err := tlv.Marshal(items)
	if err != nil {
		return err
	}
	t, _, err := c.dmRequest(clientID, uri, coap.PUT, cb)
	if err != nil {
		return err
	}
	t.pkt.ContentFormat = coap.MediaTypeTLV
	t.pkt.Payload = payload
	c.enqueueTransaction(t)
	return nil
}

// DMExecute triggers an executable resource on a registered client
func (c *Context) DMExecute(clientID uint16, uri URI, args []byte, cb ResultFunc) error {
	if !uri.HasResource {
		return fmt.Errorf("%w: execute needs a resource", ErrInvalidURI)
	}
	t, _, err := c.dmRequest(clientID, uri, coap.POST, cb)
	if err != nil {
		return err
	}
	t.pkt.Payload = args
	c.enqueueTransaction(t)
	return nil
}

// DMCreate creates an object instance on a registered client
func (c *Context) DMCreate(clientID uint16, uri URI, items []tlv.Resource, cb ResultFunc) error {
	if uri.HasResource {
		return fmt.Errorf("%w: create addresses an object", ErrInvalidURI)
	}
	payload, err := tlv.Marshal(items)
	if err != nil {
		return err
	}
	t, _, err := c.dmRequest(clientID, uri, coap.POST, cb)
	if err != nil {
		return err
	}
	t.pkt.ContentFormat = coap.MediaTypeTLV
	t.pkt.Payload = payload
	c.enqueueTransaction(t)
	return nil
}

// DMDelete removes an object instance on a registered client
func (c *Context) DMDelete(clientID uint16, uri URI, cb ResultFunc) error {
	if !uri.HasInstance || uri.HasResource {
		return fmt.Errorf("%w: delete addresses an instance", ErrInvalidURI)
	}
	t, _, err := c.dmRequest(clientID, uri, coap.DELETE, cb)
	if err != nil {
		return err
	}
	c.enqueueTransaction(t)
	return nil
}

// DMObserve places an observation on a registered client. The callback
// receives the initial value and every following notification until the
// observation is cancelled or the client is removed.
func (c *Context) DMObserve(clientID uint16, uri URI, cb ResultFunc) error {
	t, cl, err := c.dmRequest(clientID, uri, coap.GET, nil)
	if err != nil {
		return err
	}
	t.pkt.Observe = 0

	obs := &dmObservation{client: cl, uri: uri, token: t.token, callback: cb}
	t.callback = func(resp *coap.Packet) {
		if resp == nil || !resp.Code.IsSuccess() || resp.Observe < 0 {
			// refused: the record never becomes live
			c.removeDMObservation(obs)
			code := coap.InternalServerError
			var payload []byte
			if resp != nil {
				code = resp.Code
				payload = resp.Payload
			}
			if cb != nil {
				cb(clientID, uri, code, payload)
			}
			return
		}
		if cb != nil {
			cb(clientID, uri, resp.Code, resp.Payload)
		}
	}
	c.dmObs = append(c.dmObs, obs)
	c.enqueueTransaction(t)
	return nil
}

// DMObserveCancel withdraws an observation; the client learns about it from
// the observe-cancel GET
func (c *Context) DMObserveCancel(clientID uint16, uri URI) error {
	cl := c.findClient(clientID)
	if cl == nil {
		return fmt.Errorf("%w: %d", ErrClientNotFound, clientID)
	}
	var obs *dmObservation
	for _, o := range c.dmObs {
		if o.client == cl && o.uri == uri {
			obs = o
			break
		}
	}
	if obs == nil {
		return fmt.Errorf("%w: %s", ErrNotObserved, uri)
	}
	c.removeDMObservation(obs)

	t := c.newTransaction(cl.Session, cl, coap.GET)
	t.pkt.SetURIPath(uri.String())
	t.pkt.Observe = 1
	t.token = append([]byte(nil), obs.token...)
	t.pkt.Token = t.token
	c.enqueueTransaction(t)
	return nil
}
