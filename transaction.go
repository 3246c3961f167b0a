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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m/coap"
)

// retransmission schedule: resends at t0+2s, +4s, +8s, +16s, failure
// reported one doubling later
const (
	retransmitBase = 2 * time.Second
	maxRetransmits = 4
)

// transaction is one outstanding confirmable exchange. It lives on the
// context's transaction list until a response with its token arrives, the
// retransmission budget runs out, or the peer goes away.
type transaction struct {
	mid     uint16
	token   []byte
	session Session
	peer    interface{} // *Server or *Client owning the exchange

	pkt      *coap.Packet
	start    time.Time
	deadline time.Time
	attempts int

	// callback receives the response packet, or nil on timeout
	callback func(resp *coap.Packet)
}

// newTransaction builds a confirmable request addressed to a peer's session
func (c *Context) newTransaction(session Session, peer interface{}, code coap.Code) *transaction {
	pkt := coap.NewPacket(coap.Confirmable, code, c.newMID())
	pkt.Token = c.newToken()
	return &transaction{
		mid:     pkt.MessageID,
		token:   pkt.Token,
		session: session,
		peer:    peer,
		pkt:     pkt,
	}
}

// enqueueTransaction puts the transaction on the list and transmits it.
// There is at most one outstanding exchange per (peer, message ID); message
// IDs come from the context counter, so a clash means a stale duplicate.
func (c *Context) enqueueTransaction(t *transaction) {
	for _, o := range c.transactions {
		if o.peer == t.peer && o.mid == t.mid {
			log.Warningf("Duplicate transaction mid=%d dropped", t.mid)
			return
		}
	}
	now := c.now()
	t.start = now
	t.deadline = now.Add(retransmitBase)
	c.transactions = append(c.transactions, t)
	c.transmit(t)
}

// transmit sends the encoded request. A transport error is not fatal: the
// packet stays queued and the next due step resends it.
func (c *Context) transmit(t *transaction) {
	if err := c.sendPacket(t.session, t.pkt); err != nil {
		log.Errorf("Transmit mid=%d failed: %v", t.mid, err)
	}
}

// stepTransactions retransmits overdue exchanges, times out the ones whose
// budget is exhausted and shrinks timeout to the earliest pending deadline
func (c *Context) stepTransactions(now time.Time, timeout *time.Duration) {
	var timedOut []*transaction
	for _, t := range append([]*transaction(nil), c.transactions...) {
		if !now.Before(t.deadline) {
			if t.attempts >= maxRetransmits {
				timedOut = append(timedOut, t)
				continue
			}
			t.attempts++
			// deadlines double from the first transmission
			t.deadline = t.start.Add(retransmitBase << t.attempts)
			log.Debugf("Retransmit %d/%d mid=%d", t.attempts, maxRetransmits, t.mid)
			c.transmit(t)
		}
		shrinkTimeout(timeout, t.deadline.Sub(now))
	}
	for _, t := range timedOut {
		c.removeTransaction(t)
		log.Warningf("Transaction mid=%d timed out", t.mid)
		if t.callback != nil {
			t.callback(nil)
		}
	}
}

// matchTransaction finds the outstanding exchange a response belongs to
func (c *Context) matchTransaction(p *coap.Packet) *transaction {
	for _, t := range c.transactions {
		if len(p.Token) > 0 && bytes.Equal(t.token, p.Token) {
			return t
		}
		// empty ACKs and resets carry no token and match by message ID
		if len(p.Token) == 0 && (p.Type == coap.Acknowledgement || p.Type == coap.Reset) && t.mid == p.MessageID {
			return t
		}
	}
	return nil
}

// completeTransaction removes the exchange and hands the response to its
// originator
func (c *Context) completeTransaction(t *transaction, resp *coap.Packet) {
	c.removeTransaction(t)
	if t.callback != nil {
		t.callback(resp)
	}
}

func (c *Context) removeTransaction(t *transaction) {
	for i, o := range c.transactions {
		if o == t {
			c.transactions = append(c.transactions[:i], c.transactions[i+1:]...)
			return
		}
	}
}

// cancelTransactions drops every exchange owned by a removed peer without
// invoking callbacks
func (c *Context) cancelTransactions(peer interface{}) {
	kept := c.transactions[:0]
	for _, t := range c.transactions {
		if t.peer != peer {
			kept = append(kept, t)
		}
	}
	c.transactions = kept
}

func shrinkTimeout(timeout *time.Duration, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if *timeout > d {
		*timeout = d
	}
}
