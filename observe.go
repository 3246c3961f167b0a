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

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m/coap"
)

// notification counters are 24 bits on the wire
const observeCounterMask = 0xffffff

// watcher is one peer subscribed to a URI. The counter goes up by one per
// notification so the peer can spot reordering.
type watcher struct {
	session Session
	token   []byte
	counter uint32
}

// observed is one URI with its subscribers, any granularity from whole
// object down to a single resource
type observed struct {
	uri      URI
	watchers []*watcher
}

func (c *Context) findObserved(uri URI) *observed {
	for _, o := range c.observed {
		if o.uri == uri {
			return o
		}
	}
	return nil
}

// addWatcher subscribes a peer to a URI, reusing the watcher slot when the
// same peer re-observes with a fresh token
func (c *Context) addWatcher(uri URI, session Session, token []byte) *watcher {
	o := c.findObserved(uri)
	if o == nil {
		o = &observed{uri: uri}
		c.observed = append(c.observed, o)
	}
	for _, w := range o.watchers {
		if w.session == session {
			w.token = append([]byte(nil), token...)
			return w
		}
	}
	w := &watcher{session: session, token: append([]byte(nil), token...)}
	o.watchers = append(o.watchers, w)
	log.Debugf("Observation of %s added", uri)
	return w
}

// removeWatcher drops one peer's subscription to a URI; empty observations
// disappear with their last watcher
func (c *Context) removeWatcher(uri URI, session Session, token []byte) bool {
	o := c.findObserved(uri)
	if o == nil {
		return false
	}
	for i, w := range o.watchers {
		if w.session == session && (token == nil || bytes.Equal(w.token, token)) {
			o.watchers = append(o.watchers[:i], o.watchers[i+1:]...)
			if len(o.watchers) == 0 {
				c.removeObserved(o)
			}
			log.Debugf("Observation of %s cancelled", uri)
			return true
		}
	}
	return false
}

func (c *Context) removeObserved(o *observed) {
	for i, e := range c.observed {
		if e == o {
			c.observed = append(c.observed[:i], c.observed[i+1:]...)
			return
		}
	}
}

// dropWatchers removes every subscription held by a removed peer
func (c *Context) dropWatchers(session Session) {
	for _, o := range append([]*observed(nil), c.observed...) {
		kept := o.watchers[:0]
		for _, w := range o.watchers {
			if w.session != session {
				kept = append(kept, w)
			}
		}
		o.watchers = kept
		if len(o.watchers) == 0 {
			c.removeObserved(o)
		}
	}
}

// Notify reports a local resource change. Every observation covering the
// URI (or covered by it) re-reads its own granularity and notifies each of
// its watchers.
func (c *Context) Notify(uri URI) {
	for _, o := range c.observed {
		if !o.uri.covers(uri) && !uri.covers(o.uri) {
			continue
		}
		payload, code := c.readURI(o.uri)
		if code != coap.Content {
			log.Warningf("Notify %s: read failed with %s", o.uri, code)
			continue
		}
		for _, w := range o.watchers {
			w.counter = (w.counter + 1) & observeCounterMask
			p := coap.NewPacket(coap.NonConfirmable, coap.Content, c.newMID())
			p.Token = w.token
			p.Observe = int64(w.counter)
			p.ContentFormat = coap.MediaTypeTLV
			p.Payload = payload
			if err := c.sendPacket(w.session, p); err != nil {
				log.Errorf("Notify %s: %v", o.uri, err)
			}
		}
	}
}

// dmObservation is the server-side record of an observation placed on a
// client; notifications matching the token go to the callback until the
// observation is cancelled or the client goes away.
type dmObservation struct {
	client   *Client
	uri      URI
	token    []byte
	callback ResultFunc
}

func (c *Context) findDMObservation(token []byte) *dmObservation {
	for _, o := range c.dmObs {
		if bytes.Equal(o.token, token) {
			return o
		}
	}
	return nil
}

func (c *Context) removeDMObservation(o *dmObservation) {
	for i, e := range c.dmObs {
		if e == o {
			c.dmObs = append(c.dmObs[:i], c.dmObs[i+1:]...)
			return
		}
	}
}

// dropClientObservations forgets every observation placed on a removed client
func (c *Context) dropClientObservations(cl *Client) {
	kept := c.dmObs[:0]
	for _, o := range c.dmObs {
		if o.client != cl {
			kept = append(kept, o)
		}
	}
	c.dmObs = kept
}

// handleNotification routes an inbound notification to the server-side
// observation matching its token. Unknown tokens get a reset so the client
// stops notifying.
func (c *Context) handleNotification(p *coap.Packet, from Session) {
	o := c.findDMObservation(p.Token)
	if o == nil {
		log.Debugf("Notification with unknown token, resetting")
		reset := coap.NewReset(p.MessageID)
		if err := c.sendPacket(from, reset); err != nil {
			log.Errorf("Reset failed: %v", err)
		}
		return
	}
	if o.callback != nil {
		o.callback(o.client.ID, o.uri, p.Code, p.Payload)
	}
}
